package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/sol1corejz/voidshop/cmd/config"
	"github.com/sol1corejz/voidshop/internal/api"
	"github.com/sol1corejz/voidshop/internal/balance"
	"github.com/sol1corejz/voidshop/internal/cache"
	"github.com/sol1corejz/voidshop/internal/logger"
	"github.com/sol1corejz/voidshop/internal/models"
	"github.com/sol1corejz/voidshop/internal/notify"
	"github.com/sol1corejz/voidshop/internal/prefs"
	"github.com/sol1corejz/voidshop/internal/receipt"
	"github.com/sol1corejz/voidshop/internal/session"
	"github.com/sol1corejz/voidshop/internal/telegram"
	"go.uber.org/zap"
)

func main() {
	config.ParseFlags()

	if err := logger.Initialize(config.LogLevel); err != nil {
		logger.Log.Fatal("Failed to initialize logger", zap.Error(err))
	}

	if err := run(); err != nil {
		logger.Log.Fatal("Failed to run client", zap.Error(err))
	}
}

func run() error {
	store, err := prefs.Open(config.DataDir)
	if err != nil {
		return err
	}
	storeCache, err := cache.New(config.DataDir)
	if err != nil {
		return err
	}

	tgUser, err := resolveTelegramUser()
	if err != nil {
		return err
	}

	client := api.New(config.APIBase)
	reader := bufio.NewScanner(os.Stdin)

	queue := notify.New(notify.WithListener(printNotifications))
	defer queue.Close()

	sess := session.New(client, store, tgUser)
	ctx := context.Background()

	if err := sess.Init(ctx, consoleCaptchaSolver(reader), consoleCityPicker(reader)); err != nil {
		return err
	}
	user := sess.User()
	if sess.Offline() {
		fmt.Println("Сервер недоступен, работаем в офлайн-режиме.")
	}
	fmt.Printf("Добро пожаловать, %s! Баланс: ₽%.2f\n", displayName(user), user.Balance)

	flowOpts := []balance.Option{
		balance.WithUserInfo(displayName(user), user.Username),
	}
	if config.BotToken != "" && config.AdminChatID != "" {
		flowOpts = append(flowOpts, balance.WithSender(telegram.NewBotSender(config.BotToken, config.AdminChatID)))
	}
	flow := balance.New(client, queue, tgUser.ID, flowOpts...)
	defer flow.Close()
	flow.Init(ctx)

	watcher := balance.NewWatcher(flow, balance.WatchInterval)
	watcher.Start()
	defer watcher.Stop()

	ui := &console{
		reader: reader,
		client: client,
		cache:  storeCache,
		sess:   sess,
		flow:   flow,
		city:   user.City,
	}
	return ui.loop(ctx)
}

// resolveTelegramUser parses VOIDSHOP_INIT_DATA when launched from a Mini
// App bridge, verifying the signature if a bot token is configured. Outside
// Telegram a local development identity is synthesized.
func resolveTelegramUser() (telegram.User, error) {
	initData := os.Getenv("VOIDSHOP_INIT_DATA")
	if initData == "" {
		tgID, _ := strconv.ParseInt(os.Getenv("VOIDSHOP_DEV_TG_ID"), 10, 64)
		if tgID <= 0 {
			tgID = 1
		}
		return telegram.User{ID: tgID, FirstName: "Dev", Username: "dev", LanguageCode: "ru"}, nil
	}

	if config.BotToken != "" {
		if err := telegram.ValidateInitData(initData, config.BotToken); err != nil {
			return telegram.User{}, err
		}
	}
	return telegram.ParseInitData(initData)
}

func displayName(user models.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	return name
}

func printNotifications(active []notify.Notification) {
	for _, n := range active {
		fmt.Printf("[%s] %s\n", n.Type, n.Message)
	}
}

func consoleCaptchaSolver(reader *bufio.Scanner) session.CaptchaSolver {
	return func(captcha models.Captcha) (string, error) {
		fmt.Println("Подтвердите, что вы человек.")
		if decoded, err := base64.StdEncoding.DecodeString(captcha.Image); err == nil && isPrintable(decoded) {
			fmt.Printf("Код: %s\n", decoded)
		} else {
			fmt.Printf("Изображение (base64): %s\n", captcha.Image)
		}
		fmt.Print("Ответ: ")
		if !reader.Scan() {
			return "", fmt.Errorf("input closed")
		}
		return strings.TrimSpace(reader.Text()), nil
	}
}

// isPrintable guards against dumping real PNG bytes into the terminal.
func isPrintable(data []byte) bool {
	for _, r := range string(data) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return len(data) > 0
}

func consoleCityPicker(reader *bufio.Scanner) session.CityPicker {
	return func(cities []string) (string, error) {
		if len(cities) == 0 {
			cities = []string{"Москва"}
		}
		fmt.Println("Выберите город:")
		for i, city := range cities {
			fmt.Printf("  %d. %s\n", i+1, city)
		}
		for {
			fmt.Print("Номер города: ")
			if !reader.Scan() {
				return "", fmt.Errorf("input closed")
			}
			n, err := strconv.Atoi(strings.TrimSpace(reader.Text()))
			if err == nil && n >= 1 && n <= len(cities) {
				return cities[n-1], nil
			}
			fmt.Println("Некорректный выбор, попробуйте ещё раз.")
		}
	}
}

type console struct {
	reader *bufio.Scanner
	client *api.Client
	cache  *cache.Cache
	sess   *session.Session
	flow   *balance.Flow
	city   string
}

func (c *console) loop(ctx context.Context) error {
	for {
		fmt.Println("\n1) Каталог  2) Поиск  3) Пополнить баланс  4) Мои заявки  5) Обновить профиль  0) Выход")
		fmt.Print("> ")
		if !c.reader.Scan() {
			return nil
		}
		switch strings.TrimSpace(c.reader.Text()) {
		case "1":
			c.showCatalog(ctx)
		case "2":
			c.search(ctx)
		case "3":
			c.topUp(ctx)
		case "4":
			c.showRequests()
		case "5":
			c.resync(ctx)
		case "0":
			return nil
		}
	}
}

func (c *console) showCatalog(ctx context.Context) {
	var categories []models.Category
	if !c.cache.Get("categories", &categories) {
		var err error
		categories, err = c.client.GetCategories(ctx)
		if err != nil {
			fmt.Printf("Ошибка: %s\n", err)
			return
		}
		c.cache.Set("categories", categories, cache.DefaultTTL)
	}
	for _, cat := range categories {
		fmt.Printf("%s %s (%d)\n", cat.Icon, cat.Name, cat.Count)
	}
}

func (c *console) search(ctx context.Context) {
	fmt.Print("Запрос: ")
	if !c.reader.Scan() {
		return
	}
	query := strings.TrimSpace(c.reader.Text())

	products, err := c.client.SearchProducts(ctx, query, api.SearchParams{City: c.city, Limit: 20})
	if err != nil {
		fmt.Printf("Ошибка: %s\n", err)
		return
	}
	if len(products) == 0 {
		fmt.Println("Ничего не найдено.")
		return
	}
	for _, p := range products {
		line := fmt.Sprintf("%s, ₽%.0f", p.Title, p.Price)
		if p.OldPrice > p.Price {
			line += fmt.Sprintf(" (было ₽%.0f)", p.OldPrice)
		}
		if p.StoreName != "" {
			line += ", " + p.StoreName
		}
		fmt.Println(line)
	}
}

func (c *console) topUp(ctx context.Context) {
	if c.flow.Step() != balance.StepMethods {
		c.flow.Back()
	}

	fmt.Println("Методы пополнения:")
	methods := c.flow.Methods()
	for i, m := range methods {
		state := ""
		if !m.Enabled {
			state = " (недоступен)"
		}
		fmt.Printf("  %d. %s %s, ₽%.0f-%.0f%s\n", i+1, m.Icon, m.Name, m.MinAmount, m.MaxAmount, state)
	}
	fmt.Print("Метод: ")
	if !c.reader.Scan() {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(c.reader.Text()))
	if err != nil || n < 1 || n > len(methods) {
		fmt.Println("Некорректный выбор.")
		return
	}
	if err := c.flow.SelectMethod(methods[n-1].ID); err != nil {
		fmt.Printf("Ошибка: %s\n", err)
		return
	}

	fmt.Print("Сумма: ")
	if !c.reader.Scan() {
		return
	}
	c.flow.SetAmountInput(strings.TrimSpace(c.reader.Text()))
	if !c.flow.IsValidAmount() {
		fmt.Println("Сумма вне лимитов метода.")
		c.flow.Back()
		return
	}
	if err := c.flow.Submit(ctx); err != nil {
		return
	}

	payment, _ := c.flow.Payment()
	fmt.Printf("Заявка №%s. Реквизиты для перевода:\n", payment.OrderID)
	for k, v := range payment.PaymentDetails {
		fmt.Printf("  %s: %v\n", k, v)
	}

	fmt.Print("Путь к файлу чека: ")
	if !c.reader.Scan() {
		return
	}
	file, err := receipt.Open(strings.TrimSpace(c.reader.Text()), "")
	if err != nil {
		fmt.Printf("Ошибка: %s\n", err)
		return
	}
	if err := c.flow.AttachReceipt(file); err != nil {
		return
	}
	if err := c.flow.Upload(ctx); err != nil {
		return
	}

	fmt.Println(c.flow.ConfirmationPrompt())
	fmt.Print("Отправить администратору? (y/n): ")
	if !c.reader.Scan() {
		return
	}
	acknowledged := strings.EqualFold(strings.TrimSpace(c.reader.Text()), "y")
	if err := c.flow.Confirm(ctx, acknowledged); err != nil {
		return
	}
	if acknowledged {
		fmt.Println("Заявка отправлена на проверку.")
	}
}

func (c *console) showRequests() {
	requests := c.flow.Requests()
	if len(requests) == 0 {
		fmt.Println("Заявок пока нет.")
		return
	}
	for _, r := range requests {
		fmt.Printf("№%s  ₽%.2f  %s  %s\n", r.OrderID, r.Amount, r.Method, r.Status)
	}
}

func (c *console) resync(ctx context.Context) {
	if c.sess.Resync(ctx) {
		user := c.sess.User()
		c.city = user.City
		fmt.Printf("Профиль обновлён. Баланс: ₽%.2f\n", user.Balance)
		return
	}
	fmt.Println("Сервер всё ещё недоступен.")
}
