package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FoodBot/internal/aggregate"
	"FoodBot/internal/analyzer"
	"FoodBot/internal/config"
	"FoodBot/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI хранит общие флаги команд
type CLI struct {
	configFile string
	v          *viper.Viper
}

// queryOptions - флаги команды query
type queryOptions struct {
	export    string
	kind      string
	start     string
	end       string
	name      string
	n         int
	threshold int
	maxLength int
}

func newRootCommand() *cobra.Command {
	cli := &CLI{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:          "foodbot",
		Short:        "🍱 Бот, который знает, когда приезжает обед",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cli.configFile, "config", "c", "", "Файл конфигурации (yaml, json, toml)")

	rootCmd.AddCommand(newBotCommand(cli))
	rootCmd.AddCommand(newQueryCommand())

	return rootCmd
}

// newBotCommand запускает Telegram бота
func newBotCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Запустить Telegram бота",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cli.v, cli.configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("неверная конфигурация: %w", err)
			}

			logger, err := logging.New(cfg.Env, cfg.LogFile)
			if err != nil {
				return err
			}
			defer logger.Sync()
			sugar := logger.Sugar()
			sugar.Infof("Логгер успешно запущен!")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runBot(ctx, cfg, sugar); err != nil {
				sugar.Errorf("❌ Бот остановлен с ошибкой: %v", err)
				return err
			}
			sugar.Infof("👋 Бот остановлен")
			return nil
		},
	}

	cmd.Flags().String("mode", config.ModePolling, "Режим получения обновлений: polling или webhook")
	cmd.Flags().String("listen-addr", ":8080", "Адрес HTTP сервера")
	cmd.Flags().String("export", "", "Читать выгрузку вместо канала")
	_ = cli.v.BindPFlag("mode", cmd.Flags().Lookup("mode"))
	_ = cli.v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen-addr"))
	_ = cli.v.BindPFlag("export_path", cmd.Flags().Lookup("export"))

	return cmd
}

// newQueryCommand отвечает на один запрос по выгрузке без Telegram
func newQueryCommand() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Ответить на запрос по файлу выгрузки",
		Example: `  foodbot query --export messages.json --kind popular
  foodbot query --export export/ --kind window --start 11:00 --end 12:30
  foodbot query --export messages.json --kind single --name Пицца`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(opts)
			if err != nil {
				return err
			}

			messages, err := analyzer.NewExportReader(opts.export).FetchMessages(cmd.Context())
			if err != nil {
				return err
			}

			observations := analyzer.NewNormalizer(opts.maxLength).Normalize(messages)
			table := aggregate.Build(observations, opts.threshold)

			answer, err := table.Answer(req)
			if err != nil {
				return err
			}
			if answer == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Нет результатов")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), answer)
			if answer[len(answer)-1] != '\n' {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.export, "export", "", "Файл или каталог выгрузки")
	cmd.Flags().StringVar(&opts.kind, "kind", "popular", "popular, earliest, latest, window или single")
	cmd.Flags().StringVar(&opts.start, "start", "", "Начало окна HH:MM")
	cmd.Flags().StringVar(&opts.end, "end", "", "Конец окна HH:MM")
	cmd.Flags().StringVar(&opts.name, "name", "", "Ресторан для --kind single")
	cmd.Flags().IntVarP(&opts.n, "n", "n", 0, "Сколько строк показать (0 - по умолчанию)")
	cmd.Flags().IntVar(&opts.threshold, "threshold", aggregate.DefaultMinThreshold, "Минимум доставок ресторана")
	cmd.Flags().IntVar(&opts.maxLength, "max-length", analyzer.DefaultMaxLength, "Граница длины названия")
	_ = cmd.MarkFlagRequired("export")

	return cmd
}

// buildRequest собирает запрос к таблице из флагов
func buildRequest(opts *queryOptions) (aggregate.Request, error) {
	switch opts.kind {
	case "popular":
		return aggregate.MostPopular{N: opts.n}, nil
	case "earliest":
		return aggregate.Earliest{N: opts.n}, nil
	case "latest":
		return aggregate.Latest{N: opts.n}, nil
	case "window":
		if opts.start == "" || opts.end == "" {
			return nil, errors.New("для --kind window нужны --start и --end")
		}
		return aggregate.TimeWindow{Start: opts.start, End: opts.end, N: opts.n}, nil
	case "single":
		if opts.name == "" {
			return nil, errors.New("для --kind single нужен --name")
		}
		return aggregate.SingleRestaurant{Name: opts.name}, nil
	default:
		return nil, fmt.Errorf("%w: %q", aggregate.ErrUnknownRequest, opts.kind)
	}
}
