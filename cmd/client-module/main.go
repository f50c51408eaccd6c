// main.go — точка входа Client Module.
// Собирает слой сессии и данных (credstore, session, apiclient, directory,
// dashboard) и предоставляет интерактивную консоль врача поверх него.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/bigkaa/medview/client-module/internal/api/contract"
	"github.com/bigkaa/medview/client-module/internal/apiclient"
	"github.com/bigkaa/medview/client-module/internal/config"
	"github.com/bigkaa/medview/client-module/internal/credstore"
	"github.com/bigkaa/medview/client-module/internal/dashboard"
	"github.com/bigkaa/medview/client-module/internal/directory"
	"github.com/bigkaa/medview/client-module/internal/domain/model"
	"github.com/bigkaa/medview/client-module/internal/service"
	"github.com/bigkaa/medview/client-module/internal/session"
)

func main() {
	ctx := context.Background()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Client Module запускается",
		slog.String("version", config.Version),
		slog.String("api_url", cfg.APIURL),
	)

	// 3. Хранилище учётных данных (шифрование при заданном CM_CREDENTIALS_KEY)
	store := credstore.New(cfg.CredentialsFile, cfg.CredentialsKey, logger)

	// 4. HTTP-клиент API клиники
	client, err := apiclient.New(cfg.APIURL, cfg.CACertPath, cfg.APITimeout, store, logger)
	if err != nil {
		log.Fatalf("Ошибка создания клиента API: %v", err)
	}

	// 5. Валидация ответов по OpenAPI-контракту (CM_VALIDATE_RESPONSES)
	if cfg.ValidateResponses {
		validator, err := contract.New(ctx)
		if err != nil {
			log.Fatalf("Ошибка загрузки OpenAPI-контракта: %v", err)
		}
		client.SetValidator(validator)
		logger.Info("Валидация ответов API включена")
	}

	// 6. Проверка подписи токена через JWKS (CM_JWKS_URL)
	var verifier session.TokenVerifier
	if cfg.JWKSURL != "" {
		v, err := session.NewVerifier(cfg.JWKSURL, cfg.CACertPath, cfg.JWKSTimeout,
			cfg.JWKSRefreshInterval, logger)
		if err != nil {
			log.Fatalf("Ошибка инициализации JWKS: %v", err)
		}
		verifier = v
	}

	// 7. Контроллер сессии; 401 вне login инвалидирует сессию
	sess := session.NewController(store, client, verifier, logger)
	client.OnUnauthorized(sess.ExpireSession)

	// 8. Реестр пациентов с кэшем деталей
	cache := directory.NewDetailCache(cfg.DetailCacheSize, cfg.DetailCacheTTL)
	registry := directory.New(client, sess.IsAuthenticated, cache, logger)

	// 9. Контроллер главного экрана
	dash := dashboard.NewController(registry, sess, cfg.PageSize, logger)

	// 10. Мониторинг зависимостей (CM_DEPHEALTH_ENABLED)
	if cfg.DephealthEnabled {
		dh, err := service.NewDephealthService("client-module", cfg.DephealthGroup,
			cfg.APIURL, cfg.DephealthCheckInterval, cfg.DephealthIsEntry, logger)
		if err != nil {
			log.Fatalf("Ошибка инициализации dephealth: %v", err)
		}
		if err := dh.Start(ctx); err != nil {
			log.Fatalf("Ошибка запуска dephealth: %v", err)
		}
		defer dh.Stop()
	}

	// 11. Восстановление сессии из хранилища (без сетевого обмена)
	sess.RestoreSession(ctx)
	if sess.IsAuthenticated() {
		if err := dash.Refresh(ctx); err != nil {
			logger.Warn("Начальная загрузка реестра", slog.String("error", err.Error()))
		}
	}

	// 12. Интерактивная консоль (блокирует до quit / EOF)
	runConsole(ctx, sess, dash, registry, logger)

	logger.Info("Client Module остановлен")
}

// runConsole — интерактивный командный цикл консоли врача.
func runConsole(
	ctx context.Context,
	sess *session.Controller,
	dash *dashboard.Controller,
	registry *directory.Directory,
	logger *slog.Logger,
) {
	expired := sess.SubscribeExpired()
	scanner := bufio.NewScanner(os.Stdin)

	printHelp()
	printPrompt(sess)

	for scanner.Scan() {
		// Одноразовое уведомление об истечении сессии
		select {
		case <-expired:
			fmt.Println("! Сессия истекла, выполнен выход. Войдите заново.")
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			printPrompt(sess)
			continue
		}

		switch fields[0] {
		case "login":
			if len(fields) != 3 {
				fmt.Println("Использование: login <email> <пароль>")
				break
			}
			if err := sess.Login(ctx, fields[1], fields[2]); err != nil {
				fmt.Printf("Ошибка входа: %v\n", err)
				break
			}
			fmt.Printf("Вход выполнен: %s\n", sess.Current().User.FullName())
			if err := dash.Refresh(ctx); err != nil {
				fmt.Printf("Ошибка загрузки реестра: %v\n", err)
			}

		case "list":
			printPage(dash)

		case "next":
			dash.NextPage()
			printPage(dash)

		case "prev":
			dash.PrevPage()
			printPage(dash)

		case "search":
			query := ""
			if len(fields) > 1 {
				query = strings.Join(fields[1:], " ")
			}
			dash.SetQuery(query)
			printPage(dash)

		case "refresh":
			if err := dash.Refresh(ctx); err != nil {
				fmt.Printf("Ошибка загрузки реестра: %v\n", err)
				break
			}
			printPage(dash)

		case "open":
			if len(fields) != 2 {
				fmt.Println("Использование: open <код пациента>")
				break
			}
			details, err := dash.OpenPatient(ctx, fields[1])
			if err != nil {
				fmt.Printf("Ошибка открытия анкеты: %v\n", err)
				break
			}
			fmt.Printf("Пациент %s (%s, статус %s):\n", details.Code, details.SubmissionDate, details.Status)
			for key, value := range details.Survey {
				fmt.Printf("  %s: %v\n", key, value)
			}

		case "predict":
			if len(fields) != 2 {
				fmt.Println("Использование: predict <код пациента>")
				break
			}
			result, err := registry.Prediction(ctx, fields[1])
			if err != nil {
				fmt.Printf("Ошибка получения прогноза: %v\n", err)
				break
			}
			fmt.Printf("Прогноз для пациента %s:\n", result.Code)
			for key, value := range result.Values {
				fmt.Printf("  %s: %.3f\n", key, value)
			}

		case "user":
			if user := dash.CurrentUser(); user != nil {
				fmt.Printf("%s <%s>\n", user.FullName(), user.Email)
			} else {
				fmt.Println("Вход не выполнен")
			}

		case "logout":
			if err := dash.Logout(); err != nil {
				fmt.Printf("Ошибка выхода: %v\n", err)
				break
			}
			fmt.Println("Выход выполнен")

		case "help":
			printHelp()

		case "quit", "exit":
			return

		default:
			fmt.Printf("Неизвестная команда %q, введите help\n", fields[0])
		}

		printPrompt(sess)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Error("Чтение команд", slog.String("error", err.Error()))
	}
}

// printPage выводит текущую страницу реестра.
func printPage(dash *dashboard.Controller) {
	page := dash.Page()
	if len(page) == 0 {
		fmt.Println("Реестр пуст")
	}
	for _, p := range page {
		marker := " "
		if p.Status == model.StatusNew {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %s\n", marker, p.Code, p.SubmissionDate, p.Status)
	}
	fmt.Printf("Страница %d из %d\n", dash.CurrentPage(), dash.TotalPages())
}

// printPrompt выводит приглашение с состоянием сессии.
func printPrompt(sess *session.Controller) {
	fmt.Printf("[%s]> ", sess.Current().State)
}

func printHelp() {
	fmt.Println(`Команды:
  login <email> <пароль>  — вход
  list / next / prev      — реестр пациентов постранично
  search [запрос]         — фильтр по коду пациента (пустой — сброс)
  refresh                 — перезагрузка реестра
  open <код>              — детальная анкета пациента
  predict <код>           — результат прогноза
  user                    — текущий пользователь
  logout                  — выход
  quit                    — завершение работы`)
}
