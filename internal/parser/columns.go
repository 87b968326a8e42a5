package parser

import (
	"strconv"
	"strings"

	"github.com/zhwen/stockpool/backend/internal/contracts"
)

// columnSetters maps TDX export header names to record fields. Exports
// differ by TDX version and view, so several aliases map to one field;
// unknown columns are ignored.
var columnSetters = map[string]func(*contracts.DailyRecord, string){
	"代码": func(r *contracts.DailyRecord, v string) { r.Code = cleanCode(v) },
	"名称": func(r *contracts.DailyRecord, v string) { r.Name = v },

	"现价": func(r *contracts.DailyRecord, v string) { r.Close = parseFloat(v) },
	"收盘": func(r *contracts.DailyRecord, v string) { r.Close = parseFloat(v) },
	"开盘": func(r *contracts.DailyRecord, v string) { r.Open = parseFloat(v) },
	"最高": func(r *contracts.DailyRecord, v string) { r.High = parseFloat(v) },
	"最低": func(r *contracts.DailyRecord, v string) { r.Low = parseFloat(v) },

	"涨幅%":  func(r *contracts.DailyRecord, v string) { r.Change = parseFloat(v) },
	"涨幅":   func(r *contracts.DailyRecord, v string) { r.Change = parseFloat(v) },
	"总量":   func(r *contracts.DailyRecord, v string) { r.Volume = parseVolume(v) },
	"成交量":  func(r *contracts.DailyRecord, v string) { r.Volume = parseVolume(v) },
	"换手%":  func(r *contracts.DailyRecord, v string) { r.Turnover = parseFloat(v) },
	"换手":   func(r *contracts.DailyRecord, v string) { r.Turnover = parseFloat(v) },
	"振幅%":  func(r *contracts.DailyRecord, v string) { r.Amplitude = parseFloat(v) },
	"振幅":   func(r *contracts.DailyRecord, v string) { r.Amplitude = parseFloat(v) },

	"市盈率":     func(r *contracts.DailyRecord, v string) { r.PE = parseFloat(v) },
	"市盈(静)":   func(r *contracts.DailyRecord, v string) { r.PE = parseFloat(v) },
	"市盈(动)":   func(r *contracts.DailyRecord, v string) { r.PETTM = parseFloat(v) },
	"市盈(TTM)": func(r *contracts.DailyRecord, v string) { r.PETTM = parseFloat(v) },
	"市净率":     func(r *contracts.DailyRecord, v string) { r.PB = parseFloat(v) },
	"市销率":     func(r *contracts.DailyRecord, v string) { r.PS = parseFloat(v) },
	"总市值":     func(r *contracts.DailyRecord, v string) { r.MarketCap = parseFloat(v) },
	"AB股总市值":  func(r *contracts.DailyRecord, v string) { r.MarketCap = parseFloat(v) },

	"3日涨幅%":  func(r *contracts.DailyRecord, v string) { r.Change3d = parseFloat(v) },
	"5日涨幅%":  func(r *contracts.DailyRecord, v string) { r.Change5d = parseFloat(v) },
	"10日涨幅%": func(r *contracts.DailyRecord, v string) { r.Change10d = parseFloat(v) },
	"20日涨幅%": func(r *contracts.DailyRecord, v string) { r.Change20d = parseFloat(v) },
	"60日涨幅%": func(r *contracts.DailyRecord, v string) { r.Change60d = parseFloat(v) },
	"年涨幅%":   func(r *contracts.DailyRecord, v string) { r.ChangeYear = parseFloat(v) },

	"细分行业": func(r *contracts.DailyRecord, v string) { r.Industry = v },
	"行业":   func(r *contracts.DailyRecord, v string) { r.Industry = v },
	"地区":   func(r *contracts.DailyRecord, v string) { r.Region = v },

	"毛利率%":   func(r *contracts.DailyRecord, v string) { r.GrossMargin = parseFloat(v) },
	"净利率%":   func(r *contracts.DailyRecord, v string) { r.NetMargin = parseFloat(v) },
	"资产负债率%": func(r *contracts.DailyRecord, v string) { r.DebtRatio = parseFloat(v) },
	"营收同比%":  func(r *contracts.DailyRecord, v string) { r.RevenueYoY = parseFloat(v) },
	"利润同比%":  func(r *contracts.DailyRecord, v string) { r.ProfitYoY = parseFloat(v) },
	"股息率%":   func(r *contracts.DailyRecord, v string) { r.DividendYield = parseFloat(v) },

	"信号": func(r *contracts.DailyRecord, v string) { r.Signals = parseSignals(v) },
}

// cleanCode strips the ="000123" spreadsheet quoting TDX emits to keep
// leading zeros.
func cleanCode(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "=")
	v = strings.Trim(v, `"`)
	return v
}

// parseFloat is deliberately forgiving: percent signs and thousands
// separators are stripped, placeholder values for suspended or missing
// data parse as zero.
func parseFloat(v string) float64 {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, "%")
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimPrefix(v, "+")

	switch v {
	case "", "--", "—", "-", "停牌":
		return 0
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseVolume(v string) int64 {
	return int64(parseFloat(v))
}

func parseSignals(v string) []string {
	var signals []string
	for _, s := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == '+' || r == '、' || r == ','
	}) {
		s = strings.TrimSpace(s)
		if s != "" {
			signals = append(signals, s)
		}
	}
	return signals
}
