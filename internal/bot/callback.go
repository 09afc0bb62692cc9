package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ivanoskov/exchange_bot/internal/wizard"
)

var errBadCallback = errors.New("malformed callback data")

// Данные кнопок: w:<action>:<param> для мастера, close:<id> для закрытия
// заявки, dash:refresh для обновления сводки в группе, bcast:send и
// bcast:cancel для подтверждения рассылки.
const (
	wizardPrefix     = "w"
	closePrefix      = "close"
	dashboardRefresh = "dash:refresh"
	broadcastSend    = "bcast:send"
	broadcastCancel  = "bcast:cancel"
)

type callbackKind int

const (
	callbackWizard callbackKind = iota + 1
	callbackClose
	callbackDashboard
	callbackBroadcast
)

// callbackData - разобранные данные нажатой кнопки
type callbackData struct {
	kind      callbackKind
	choice    wizard.Choice
	requestID int64
	// confirmed - рассылка подтверждена, а не отменена
	confirmed bool
}

func encodeWizard(c wizard.Choice) string {
	return wizardPrefix + ":" + string(c.Action) + ":" + c.Param
}

func encodeClose(requestID int64) string {
	return closePrefix + ":" + strconv.FormatInt(requestID, 10)
}

// decodeCallback разбирает данные кнопки один раз на входе
func decodeCallback(data string) (callbackData, error) {
	switch data {
	case dashboardRefresh:
		return callbackData{kind: callbackDashboard}, nil
	case broadcastSend:
		return callbackData{kind: callbackBroadcast, confirmed: true}, nil
	case broadcastCancel:
		return callbackData{kind: callbackBroadcast}, nil
	}

	prefix, rest, ok := strings.Cut(data, ":")
	if !ok {
		return callbackData{}, fmt.Errorf("%w: %q", errBadCallback, data)
	}

	switch prefix {
	case wizardPrefix:
		action, param, _ := strings.Cut(rest, ":")
		a := wizard.Action(action)
		if !a.Valid() {
			return callbackData{}, fmt.Errorf("%w: unknown action %q", errBadCallback, action)
		}
		return callbackData{kind: callbackWizard, choice: wizard.Choice{Action: a, Param: param}}, nil

	case closePrefix:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return callbackData{}, fmt.Errorf("%w: bad request id %q", errBadCallback, rest)
		}
		return callbackData{kind: callbackClose, requestID: id}, nil
	}
	return callbackData{}, fmt.Errorf("%w: unknown prefix %q", errBadCallback, prefix)
}
