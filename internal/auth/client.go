package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// AuthFlow реализует auth.UserAuthenticator: телефон и пароль берутся из конфигурации,
// недостающее спрашивается в терминале
type AuthFlow struct {
	PhoneNumber string
	Secret      string // пароль двухфакторной аутентификации
	in          *bufio.Reader
	out         io.Writer
	logger      *zap.SugaredLogger
}

// NewAuthFlow создает процесс входа, читающий ответы из stdin
func NewAuthFlow(phone, password string, logger *zap.SugaredLogger) *AuthFlow {
	return newAuthFlow(phone, password, os.Stdin, os.Stdout, logger)
}

func newAuthFlow(phone, password string, in io.Reader, out io.Writer, logger *zap.SugaredLogger) *AuthFlow {
	return &AuthFlow{
		PhoneNumber: phone,
		Secret:      password,
		in:          bufio.NewReader(in),
		out:         out,
		logger:      logger,
	}
}

// Phone возвращает номер телефона из конфигурации или спрашивает его
func (a *AuthFlow) Phone(ctx context.Context) (string, error) {
	if a.PhoneNumber != "" {
		return a.PhoneNumber, nil
	}
	phone, err := a.prompt("Введите номер телефона в международном формате (+79991234567): ")
	if err != nil {
		return "", fmt.Errorf("ошибка ввода номера: %w", err)
	}
	a.logger.Infof("Введен номер: %s", phone)
	return phone, nil
}

// Password возвращает пароль 2FA из конфигурации или спрашивает его
func (a *AuthFlow) Password(ctx context.Context) (string, error) {
	if a.Secret != "" {
		return a.Secret, nil
	}
	password, err := a.prompt("Введите пароль двухфакторной аутентификации: ")
	if err != nil {
		return "", fmt.Errorf("ошибка ввода пароля: %w", err)
	}
	a.logger.Infof("Введен пароль 2FA")
	return password, nil
}

// Code запрашивает код подтверждения из Telegram
func (a *AuthFlow) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	code, err := a.prompt("Введите код из Telegram: ")
	if err != nil {
		return "", fmt.Errorf("ошибка ввода кода: %w", err)
	}
	a.logger.Infof("Введен код подтверждения")
	return code, nil
}

// AcceptTermsOfService автоматически принимает условия использования
func (a *AuthFlow) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	a.logger.Infof("Принимаем условия использования Telegram")
	return nil
}

// SignUp не поддерживается: бот читает канал существующим аккаунтом
func (a *AuthFlow) SignUp(ctx context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("регистрация не поддерживается")
}

func (a *AuthFlow) prompt(question string) (string, error) {
	fmt.Fprint(a.out, question)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return "", errors.New("пустой ответ")
	}
	return answer, nil
}

// Authenticate входит в аккаунт, если сессия еще не авторизована
func Authenticate(ctx context.Context, client *telegram.Client, flow *AuthFlow, logger *zap.SugaredLogger) error {
	// Проверяем текущий статус аутентификации
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("не удалось проверить статус аутентификации: %w", err)
	}

	if !status.Authorized {
		logger.Infof("Начинаем процесс аутентификации...")

		if err := client.Auth().IfNecessary(ctx, auth.NewFlow(flow, auth.SendCodeOptions{})); err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}

		logger.Infof("Аутентификация успешно завершена")
	} else {
		logger.Infof("Уже аутентифицирован")
	}

	me, err := client.Self(ctx)
	if err != nil {
		return fmt.Errorf("не удалось получить информацию о пользователе: %w", err)
	}

	logger.Infof("✅ Успешный вход как: %s", displayName(me))
	return nil
}

// displayName собирает "Имя Фамилия (@username)"
func displayName(me *tg.User) string {
	name := me.FirstName
	if me.LastName != "" {
		name += " " + me.LastName
	}
	if me.Username != "" {
		name += " (@" + me.Username + ")"
	}
	return name
}
