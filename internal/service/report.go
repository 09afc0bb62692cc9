package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/description"
	"github.com/ivanoskov/exchange_bot/internal/model"
	"github.com/shopspring/decimal"
)

// trendDays - за сколько дней строится динамика новых заявок
const trendDays = 14

// PairStats - число активных заявок по валютной паре
type PairStats struct {
	Pair string
	Take int
	Give int
}

func (p PairStats) Total() int { return p.Take + p.Give }

// CurrencyVolume - суммарный объем активных заявок в валюте
type CurrencyVolume struct {
	Currency model.Currency
	Amount   decimal.Decimal
}

// TrendPoint - число заявок, созданных за день
type TrendPoint struct {
	Date  time.Time
	Count int
}

// Report - сводка по активным заявкам для /stats
type Report struct {
	Text    string
	Pairs   []PairStats
	Volumes []CurrencyVolume
	Trend   []TrendPoint
}

// Report строит сводку по текущим активным заявкам
func (s *Requests) Report(ctx context.Context) (*Report, error) {
	requests, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active requests: %w", err)
	}
	return buildReport(requests, s.now()), nil
}

func buildReport(requests []model.Request, now time.Time) *Report {
	pairs := make(map[string]*PairStats)
	volumes := make(map[model.Currency]decimal.Decimal)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -(trendDays - 1))
	daily := make([]TrendPoint, trendDays)
	for i := range daily {
		daily[i].Date = start.AddDate(0, 0, i)
	}

	for _, r := range requests {
		key := pairLabel(r.CurrencyFrom, r.CurrencyTo)
		p, ok := pairs[key]
		if !ok {
			p = &PairStats{Pair: key}
			pairs[key] = p
		}
		if r.RequestType == model.RequestTake {
			p.Take++
		} else {
			p.Give++
		}

		volumes[r.CurrencyFrom] = volumes[r.CurrencyFrom].Add(r.Amount)

		created := r.CreatedAt.In(now.Location())
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, now.Location())
		if idx := int(math.Round(day.Sub(start).Hours() / 24)); idx >= 0 && idx < trendDays {
			daily[idx].Count++
		}
	}

	report := &Report{Trend: daily}
	for _, p := range pairs {
		report.Pairs = append(report.Pairs, *p)
	}
	// самые популярные пары первыми
	sort.Slice(report.Pairs, func(i, j int) bool {
		if report.Pairs[i].Total() != report.Pairs[j].Total() {
			return report.Pairs[i].Total() > report.Pairs[j].Total()
		}
		return report.Pairs[i].Pair < report.Pairs[j].Pair
	})
	for _, c := range model.Currencies {
		if v, ok := volumes[c]; ok {
			report.Volumes = append(report.Volumes, CurrencyVolume{Currency: c, Amount: v})
		}
	}
	report.Text = reportText(len(requests), report)
	return report
}

func pairLabel(from, to model.Currency) string {
	return string(from) + "→" + string(to)
}

func reportText(total int, r *Report) string {
	if total == 0 {
		return "📊 Активных заявок нет."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Активных заявок: %d\n", total)
	if len(r.Pairs) > 0 {
		b.WriteString("\n🔁 По парам:\n")
		for _, p := range r.Pairs {
			fmt.Fprintf(&b, "• %s: %d (получить %d, отдать %d)\n", p.Pair, p.Total(), p.Take, p.Give)
		}
	}
	if len(r.Volumes) > 0 {
		b.WriteString("\n💰 Объем:\n")
		for _, v := range r.Volumes {
			fmt.Fprintf(&b, "• %s\n", description.FormatMoney(v.Amount, v.Currency))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
