package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestType направление заявки: получить или отдать
type RequestType string

const (
	RequestTake RequestType = "take"
	RequestGive RequestType = "give"
)

// Opposite возвращает встречное направление (take <-> give)
func (t RequestType) Opposite() RequestType {
	switch t {
	case RequestTake:
		return RequestGive
	case RequestGive:
		return RequestTake
	}
	return ""
}

func (t RequestType) Valid() bool {
	return t == RequestTake || t == RequestGive
}

type Currency string

const (
	USD Currency = "USD"
	TJS Currency = "TJS"
	UZS Currency = "UZS"
	RUB Currency = "RUB"
)

// Currencies в порядке отображения на кнопках
var Currencies = []Currency{USD, TJS, UZS, RUB}

type MoneyType string

const (
	MoneyCash   MoneyType = "cash"
	MoneyOnline MoneyType = "online"
)

var MoneyTypes = []MoneyType{MoneyCash, MoneyOnline}

type Location string

const (
	Dushanbe Location = "dushanbe"
	Tashkent Location = "tashkent"
	Moscow   Location = "moscow"
)

var Locations = []Location{Dushanbe, Tashkent, Moscow}

// onlineCities - валюты, у которых онлайн-перевод всегда привязан к одному городу
var onlineCities = map[Currency]Location{
	TJS: Dushanbe,
	UZS: Tashkent,
	RUB: Moscow,
}

// OnlineCity возвращает город для онлайн-перевода в указанной валюте, если он однозначен
func OnlineCity(c Currency) (Location, bool) {
	loc, ok := onlineCities[c]
	return loc, ok
}

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// Attributes - шесть атрибутов, по которым заявки сравниваются при поиске встречных
type Attributes struct {
	CurrencyFrom  Currency  `json:"currency_from"`
	MoneyTypeFrom MoneyType `json:"money_type_from"`
	LocationFrom  Location  `json:"location_from"`
	CurrencyTo    Currency  `json:"currency_to"`
	MoneyTypeTo   MoneyType `json:"money_type_to"`
	LocationTo    Location  `json:"location_to"`
}

// Request - опубликованная заявка на обмен
type Request struct {
	ID             int64           `json:"id,omitempty"`
	RequesterID    int64           `json:"user_id"`
	RequestType    RequestType     `json:"request_type"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyFrom   Currency        `json:"currency_from"`
	MoneyTypeFrom  MoneyType       `json:"money_type_from"`
	LocationFrom   Location        `json:"location_from"`
	CurrencyTo     Currency        `json:"currency_to"`
	MoneyTypeTo    MoneyType       `json:"money_type_to"`
	LocationTo     Location        `json:"location_to"`
	Comment        string          `json:"comment,omitempty"`
	MessageText    string          `json:"message_text"`
	Status         Status          `json:"status"`
	GroupMessageID *int            `json:"group_message_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
}

func (r *Request) Attributes() Attributes {
	return Attributes{
		CurrencyFrom:  r.CurrencyFrom,
		MoneyTypeFrom: r.MoneyTypeFrom,
		LocationFrom:  r.LocationFrom,
		CurrencyTo:    r.CurrencyTo,
		MoneyTypeTo:   r.MoneyTypeTo,
		LocationTo:    r.LocationTo,
	}
}

func (r *Request) IsActive() bool {
	return r.Status == StatusActive
}
