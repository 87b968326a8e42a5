package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/zhwen/stockpool/backend/pkg/logger"
)

const sampleExport = "代码\t名称\t涨幅%\t现价\t换手%\t振幅%\t5日涨幅%\t细分行业\t地区\n" +
	"放量突破\n" +
	"=\"000001\"\t平安银行\t2.35\t11.20\t3.2\t4.1\t5.6\t银行\t深圳\n" +
	"600519\t贵州茅台\t-0.52\t1680.00\t0.8\t1.5\t-1.2\t白酒\t贵州\n" +
	"均线多头\n" +
	"000001\t平安银行\t2.35\t11.20\t3.2\t4.1\t5.6\t银行\t深圳\n" +
	"999999\t上证指数\t0.62\t3205.40\t--\t--\t--\t\t\n" +
	"#数据来源：通达信\n"

func TestParse_GroupsAndDedup(t *testing.T) {
	p := New(logger.NewNop())

	parsed, err := p.Parse([]byte(sampleExport))
	require.NoError(t, err)

	require.Len(t, parsed.Groups, 2)
	assert.Equal(t, "放量突破", parsed.Groups[0].Name)
	assert.Len(t, parsed.Groups[0].Stocks, 2)
	assert.Equal(t, "均线多头", parsed.Groups[1].Name)
	assert.Len(t, parsed.Groups[1].Stocks, 1)

	// Flat list is deduplicated; the repeated stock carries both groups.
	require.Len(t, parsed.Stocks, 2)
	assert.Equal(t, "000001", parsed.Stocks[0].Code)
	assert.Equal(t, []string{"放量突破", "均线多头"}, parsed.Stocks[0].Formulas)
	assert.Equal(t, []string{"放量突破"}, parsed.Stocks[1].Formulas)

	first := parsed.Stocks[0]
	assert.Equal(t, "平安银行", first.Name)
	assert.Equal(t, 2.35, first.Change)
	assert.Equal(t, 11.20, first.Close)
	assert.Equal(t, 3.2, first.Turnover)
	assert.Equal(t, 4.1, first.Amplitude)
	assert.Equal(t, 5.6, first.Change5d)
	assert.Equal(t, "银行", first.Industry)
	assert.Equal(t, "深圳", first.Region)
}

func TestParse_IndexRowBecomesBenchmark(t *testing.T) {
	p := New(logger.NewNop())

	parsed, err := p.Parse([]byte(sampleExport))
	require.NoError(t, err)

	require.NotNil(t, parsed.Index)
	assert.Equal(t, "999999", parsed.Index.Code)
	assert.Equal(t, "上证指数", parsed.Index.Name)
	assert.Equal(t, 3205.40, parsed.Index.Price)
	assert.Equal(t, 0.62, parsed.Index.Change)

	for _, s := range parsed.Stocks {
		assert.NotEqual(t, "999999", s.Code, "index must not join the pool")
	}
}

func TestParse_GBKEncoded(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(sampleExport))
	require.NoError(t, err)

	p := New(logger.NewNop())
	parsed, err := p.Parse(gbk)
	require.NoError(t, err)

	require.Len(t, parsed.Stocks, 2)
	assert.Equal(t, "平安银行", parsed.Stocks[0].Name)
	assert.Equal(t, "放量突破", parsed.Groups[0].Name)
}

func TestParse_HTMLTable(t *testing.T) {
	html := `<html><body><table>
		<tr><td>代码</td><td>名称</td><td>涨幅%</td><td>现价</td></tr>
		<tr><td>短线王</td></tr>
		<tr><td>="300750"</td><td>宁德时代</td><td>4.20</td><td>188.50</td></tr>
	</table></body></html>`

	p := New(logger.NewNop())
	parsed, err := p.Parse([]byte(html))
	require.NoError(t, err)

	require.Len(t, parsed.Stocks, 1)
	assert.Equal(t, "300750", parsed.Stocks[0].Code)
	assert.Equal(t, "宁德时代", parsed.Stocks[0].Name)
	assert.Equal(t, 4.20, parsed.Stocks[0].Change)
	assert.Equal(t, []string{"短线王"}, parsed.Stocks[0].Formulas)
}

func TestParse_NoHeader(t *testing.T) {
	p := New(logger.NewNop())

	_, err := p.Parse([]byte("just\tsome\ttext\nwithout\ta\theader\n"))
	require.Error(t, err)
}

func TestParseFile_DateFromName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "自选股20260821.xls")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0o644))

	p := New(logger.NewNop())
	parsed, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-21", parsed.Date)
}

func TestDateFromFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"自选股20260821.xls", "2026-08-21"},
		{"export_2026-08-21.txt", "2026-08-21"},
		{"pool.2026.08.21.csv", "2026-08-21"},
		{"watchlist.xls", ""},
		{"20261350.xls", ""}, // not a real date
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, dateFromFileName(tt.name), tt.name)
	}
}

func TestParseFloat_Placeholders(t *testing.T) {
	assert.Equal(t, 0.0, parseFloat("--"))
	assert.Equal(t, 0.0, parseFloat("—"))
	assert.Equal(t, 0.0, parseFloat("停牌"))
	assert.Equal(t, 0.0, parseFloat(""))
	assert.Equal(t, 12.5, parseFloat("12.5%"))
	assert.Equal(t, 1234.0, parseFloat("1,234"))
	assert.Equal(t, 3.8, parseFloat("+3.8"))
}

func TestCleanCode(t *testing.T) {
	assert.Equal(t, "000001", cleanCode(`="000001"`))
	assert.Equal(t, "600519", cleanCode("600519"))
	assert.Equal(t, "000001", cleanCode(` ="000001" `))
}
