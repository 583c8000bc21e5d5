package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 固定"当前时间"，让日期区间推理可重复
func fixedExtractor() *ExperienceExtractor {
	return &ExperienceExtractor{
		Now: func() time.Time {
			return time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
		},
	}
}

// TestExtractYearsExplicit 显式年限表述的各个正则族
func TestExtractYearsExplicit(t *testing.T) {
	e := fixedExtractor()
	cases := []struct {
		name     string
		text     string
		expected int
	}{
		{"years of experience", "I have 5 years of experience in backend development", 5},
		{"缩写exp", "7 years exp with distributed systems", 7},
		{"N+ years", "3+ years building Go services", 3},
		{"experience冒号", "Experience: 4 years", 4},
		{"中文年限", "具有8年工作经验，熟悉高并发场景", 8},
		{"中文以上", "10年以上经验", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := e.ExtractYears(tc.text)
			require.True(t, ok)
			assert.Equal(t, tc.expected, got)
		})
	}
}

// TestExtractYearsTakesMax 多处表述并存时取区间内的最大值
func TestExtractYearsTakesMax(t *testing.T) {
	e := fixedExtractor()
	got, ok := e.ExtractYears("3 years of experience in Go, 6 years of experience overall")
	require.True(t, ok)
	assert.Equal(t, 6, got)
}

// TestExtractYearsImplausibleRejected 超出合理区间的数值视为误解析
func TestExtractYearsImplausibleRejected(t *testing.T) {
	e := fixedExtractor()
	_, ok := e.ExtractYears("99 years of experience")
	assert.False(t, ok, "99年超出合理上限，不能采信")
}

// TestExtractYearsFromDateRanges 显式表述缺失时回退到日期区间求和
func TestExtractYearsFromDateRanges(t *testing.T) {
	e := fixedExtractor()

	// 2018.03 - 2020.03 是24个月，2021 - present 是 2021.01 到 2026.06 共65个月
	// 合计89个月，向上取整为8年
	text := "Software Engineer, Mar 2018 - Mar 2020\nSenior Engineer, 2021 - present"
	got, ok := e.ExtractYears(text)
	require.True(t, ok)
	assert.Equal(t, 8, got)
}

// TestExtractYearsNegativeRangeIgnored 终点早于起点的区间按脏数据跳过
func TestExtractYearsNegativeRangeIgnored(t *testing.T) {
	e := fixedExtractor()
	_, ok := e.ExtractYears("worked 2020 - 2018 somewhere")
	assert.False(t, ok)
}

// TestExtractYearsEarliestMention 日期区间也没有时用最早的 Month YYYY 兜底
func TestExtractYearsEarliestMention(t *testing.T) {
	e := fixedExtractor()

	// 最早 Jun 2019，距 2026.06 共84个月，即7年
	text := "Joined Acme in Jun 2019. Promoted in Jan 2022."
	got, ok := e.ExtractYears(text)
	require.True(t, ok)
	assert.Equal(t, 7, got)
}

// TestExtractYearsNotFound 无任何信号时必须返回 (0,false)，
// "没有信息"和"零年经验"是两回事
func TestExtractYearsNotFound(t *testing.T) {
	e := fixedExtractor()
	got, ok := e.ExtractYears("精通Go语言与分布式系统")
	assert.False(t, ok)
	assert.Equal(t, 0, got)

	_, ok = e.ExtractYears("")
	assert.False(t, ok)
}

func intPtr(v int) *int { return &v }

// TestYearsScore 年限打分的阶梯曲线
func TestYearsScore(t *testing.T) {
	cases := []struct {
		name     string
		required *int
		resume   *int
		expected float64
	}{
		{"岗位未限定年限", nil, intPtr(3), 1.0},
		{"岗位年限为0视为未限定", intPtr(0), nil, 1.0},
		{"达标", intPtr(5), intPtr(5), 1.0},
		{"超额达标", intPtr(3), intPtr(10), 1.0},
		{"略低于要求", intPtr(5), intPtr(4), 0.9},
		{"明显不足", intPtr(5), intPtr(3), 0.7},
		{"严重不足走线性", intPtr(10), intPtr(2), 0.16},
		{"有要求但简历无年限", intPtr(5), nil, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, YearsScore(tc.required, tc.resume), 1e-9)
		})
	}
}
