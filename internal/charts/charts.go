// Package charts рисует графики по сводке активных заявок.
package charts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ivanoskov/exchange_bot/internal/service"
	"github.com/wcharczuk/go-chart/v2"
)

// ChartGenerator генерирует PNG-графики для /stats
type ChartGenerator struct{}

// NewChartGenerator создает новый генератор графиков
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{}
}

var background = chart.Style{
	Padding: chart.Box{
		Top:    50,
		Left:   50,
		Right:  50,
		Bottom: 50,
	},
	FillColor: chart.ColorWhite,
}

var axisStyle = chart.Style{
	FontSize:  12,
	FontColor: chart.ColorBlack,
}

// calculateMovingAverage вычисляет скользящее среднее
func calculateMovingAverage(values []float64, window int) []float64 {
	result := make([]float64, len(values))
	for i := range values {
		count := 0
		sum := 0.0
		for j := max(0, i-window+1); j <= i; j++ {
			sum += values[j]
			count++
		}
		result[i] = sum / float64(count)
	}
	return result
}

// GeneratePairChart создает столбчатую диаграмму активных заявок по валютным парам
func (g *ChartGenerator) GeneratePairChart(report *service.Report) ([]byte, error) {
	if len(report.Pairs) == 0 {
		return nil, nil // нет данных для графика
	}

	bars := make([]chart.Value, 0, len(report.Pairs))
	top := 0
	for _, p := range report.Pairs {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s: %d", p.Pair, p.Total()),
			Value: float64(p.Total()),
			Style: chart.Style{
				StrokeColor: chart.ColorBlue,
				FillColor:   chart.ColorBlue,
				FontSize:    12,
				FontColor:   chart.ColorBlack,
			},
		})
		top = max(top, p.Total())
	}

	graph := chart.BarChart{
		Title: "Активные заявки по парам",
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: chart.ColorBlack,
		},
		Width:      1200,
		Height:     600,
		BarWidth:   60,
		Background: background,
		YAxis: chart.YAxis{
			// явный диапазон: при одной паре автоматический вырождается в точку
			Range: &chart.ContinuousRange{Min: 0, Max: float64(top + 1)},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
			Style: axisStyle,
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render pair chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// GenerateVolumePieChart создает круговую диаграмму объема заявок по валютам
func (g *ChartGenerator) GenerateVolumePieChart(report *service.Report, rates map[string]float64) ([]byte, error) {
	// объемы в разных валютах сравнимы только после пересчета в TJS
	type share struct {
		label string
		value float64
	}
	var shares []share
	total := 0.0
	for _, v := range report.Volumes {
		rate, ok := rates[string(v.Currency)]
		if !ok {
			continue
		}
		value := v.Amount.InexactFloat64() * rate
		shares = append(shares, share{label: string(v.Currency), value: value})
		total += value
	}
	if total == 0 {
		return nil, nil
	}

	values := make([]chart.Value, 0, len(shares))
	// Добавляем только валюты с существенной долей (>1%)
	for _, s := range shares {
		percentage := s.value / total * 100
		if percentage > 1.0 {
			values = append(values, chart.Value{
				Label: fmt.Sprintf("%s: %.0f TJS (%.1f%%)", s.label, s.value, percentage),
				Value: s.value,
				Style: axisStyle,
			})
		}
	}

	pie := chart.PieChart{
		Title:      "Объем заявок в TJS",
		Width:      800,
		Height:     800,
		Values:     values,
		Background: background,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render volume pie chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// GenerateTrendChart создает график новых заявок по дням
func (g *ChartGenerator) GenerateTrendChart(report *service.Report) ([]byte, error) {
	if len(report.Trend) < 2 {
		return nil, nil
	}

	xValues := make([]time.Time, len(report.Trend))
	counts := make([]float64, len(report.Trend))
	top := 0.0
	for i, point := range report.Trend {
		xValues[i] = point.Date
		counts[i] = float64(point.Count)
		top = max(top, counts[i])
	}
	average := calculateMovingAverage(counts, 7)

	graph := chart.Chart{
		Title:      "Новые заявки по дням",
		Width:      1200,
		Height:     600,
		Background: background,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02.01"),
			Style:          axisStyle,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top + 1},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
			Style: axisStyle,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Заявки",
				XValues: xValues,
				YValues: counts,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "Среднее (7 дней)",
				XValues: xValues,
				YValues: average,
				Style: chart.Style{
					StrokeColor:     chart.ColorBlue.WithAlpha(100),
					StrokeWidth:     2,
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
		},
	}

	// Добавляем легенду
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, axisStyle),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render trend chart: %w", err)
	}
	return buffer.Bytes(), nil
}
