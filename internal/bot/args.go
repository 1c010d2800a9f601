package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
)

type paidArgs struct {
	Network string `validate:"required,oneof=bsc sol"`
	TxHash  string `validate:"required,alphanum,min=32,max=128"`
}

type userDaysArgs struct {
	UserID int64 `validate:"gt=0"`
	Days   int   `validate:"min=1,max=3650"`
}

type userArgs struct {
	UserID int64 `validate:"gt=0"`
}

type channelArgs struct {
	ChannelID int64 `validate:"lt=0"`
}

type paymentIDArgs struct {
	ID string `validate:"required,uuid4"`
}

type fileArgs struct {
	FileID int64 `validate:"gt=0"`
}

var errUsage = errors.New("wrong number of arguments")

func splitArgs(raw string, want int) ([]string, error) {
	fields := strings.Fields(raw)
	if len(fields) != want {
		return nil, errUsage
	}
	return fields, nil
}

func parseInt(field, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	return v, nil
}

func (b *Bot) parsePaid(raw string) (paidArgs, error) {
	fields, err := splitArgs(raw, 2)
	if err != nil {
		return paidArgs{}, err
	}
	args := paidArgs{Network: strings.ToLower(fields[0]), TxHash: fields[1]}
	return args, b.check(args)
}

func (b *Bot) parseUserDays(raw string) (userDaysArgs, error) {
	fields, err := splitArgs(raw, 2)
	if err != nil {
		return userDaysArgs{}, err
	}
	id, err := parseInt("UserID", fields[0])
	if err != nil {
		return userDaysArgs{}, err
	}
	days, err := parseInt("Days", fields[1])
	if err != nil {
		return userDaysArgs{}, err
	}
	args := userDaysArgs{UserID: id, Days: int(days)}
	return args, b.check(args)
}

func (b *Bot) parseUser(raw string) (userArgs, error) {
	fields, err := splitArgs(raw, 1)
	if err != nil {
		return userArgs{}, err
	}
	id, err := parseInt("UserID", fields[0])
	if err != nil {
		return userArgs{}, err
	}
	args := userArgs{UserID: id}
	return args, b.check(args)
}

func (b *Bot) parseChannel(raw string) (channelArgs, error) {
	fields, err := splitArgs(raw, 1)
	if err != nil {
		return channelArgs{}, err
	}
	id, err := parseInt("ChannelID", fields[0])
	if err != nil {
		return channelArgs{}, err
	}
	args := channelArgs{ChannelID: id}
	return args, b.check(args)
}

func (b *Bot) parsePaymentID(raw string) (paymentIDArgs, error) {
	fields, err := splitArgs(raw, 1)
	if err != nil {
		return paymentIDArgs{}, err
	}
	args := paymentIDArgs{ID: fields[0]}
	return args, b.check(args)
}

func (b *Bot) parseFile(raw string) (fileArgs, error) {
	fields, err := splitArgs(raw, 1)
	if err != nil {
		return fileArgs{}, err
	}
	id, err := parseInt("FileID", fields[0])
	if err != nil {
		return fileArgs{}, err
	}
	args := fileArgs{FileID: id}
	return args, b.check(args)
}

func (b *Bot) check(args any) error {
	err := b.validate.Struct(args)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return errors.New(validationMessage(verrs))
	}
	return err
}

// validationMessage превращает ошибки валидатора в текст для пользователя.
func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", err.Field()))
		case "alphanum":
			msgs = append(msgs, fmt.Sprintf("%s can contain only numbers and letters", err.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param()))
		case "uuid4":
			msgs = append(msgs, fmt.Sprintf("%s must be a payment id", err.Field()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be within limits (%s %s)", err.Field(), err.ActualTag(), err.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be positive", err.Field()))
		case "lt":
			msgs = append(msgs, fmt.Sprintf("%s must be a channel id (starts with -100)", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not valid", err.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}
