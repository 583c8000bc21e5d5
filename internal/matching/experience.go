package matching

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 经验年限的合理区间，超出视为误解析
const (
	minPlausibleYears = 1
	maxPlausibleYears = 50
)

// 显式年限表述的四个正则族，按优先级排列
var (
	reYearsOfExperience = regexp.MustCompile(`(?i)(\d{1,2})\s*\+?\s*years?\s+(?:of\s+)?(?:experience|exp)\b`)
	reYearsPlus         = regexp.MustCompile(`(?i)(\d{1,2})\s*\+\s*years?\b`)
	reExperienceColon   = regexp.MustCompile(`(?i)experience\s*:\s*(\d{1,2})\s*years?\b`)
	reYearsOld          = regexp.MustCompile(`(?i)(\d{1,2})\s*y\.?\s*o\.?\b`)
	// 中文简历里常见的"N年（工作）经验"
	reYearsChinese = regexp.MustCompile(`(\d{1,2})\s*年(?:以上)?(?:工作)?经验`)
)

var explicitYearPatterns = []*regexp.Regexp{
	reYearsOfExperience,
	reYearsPlus,
	reExperienceColon,
	reYearsOld,
	reYearsChinese,
}

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	monthToken = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

	// "start - end" 日期区间，起止是 YYYY 或 Month YYYY，终点可以是 present/current/now
	reDateRange = regexp.MustCompile(`(?i)(` + monthToken + `\.?\s+\d{4}|\d{4})\s*(?:-|–|—|~|to|until)\s*(` + monthToken + `\.?\s+\d{4}|\d{4}|present|current|now)`)

	// 零散的 Month YYYY 标记，用于兜底推断最早工作时间
	reMonthYear = regexp.MustCompile(`(?i)\b(` + monthToken + `)\.?\s+(\d{4})\b`)
)

// ExperienceExtractor 从自由文本中估计总工作年限。
// Now 可注入以便测试，零值时使用 time.Now。
type ExperienceExtractor struct {
	Now func() time.Time
}

// NewExperienceExtractor 创建经验抽取器
func NewExperienceExtractor() *ExperienceExtractor {
	return &ExperienceExtractor{Now: time.Now}
}

func (e *ExperienceExtractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ExtractYears 估计文本描述的总经验年限。
// 优先取显式的"N years"类表述；没有时回退到日期区间推理；
// 再没有时用最早出现的 Month YYYY 推算到当前。
// 什么都没找到返回 (0,false)——零年经验和"没有信息"是两回事，
// 下游不得混淆。
func (e *ExperienceExtractor) ExtractYears(text string) (int, bool) {
	if years, ok := e.extractExplicitYears(text); ok {
		return years, true
	}
	if years, ok := e.extractFromDateRanges(text); ok {
		return years, true
	}
	return e.extractFromEarliestMention(text)
}

// extractExplicitYears 扫描全部正则族，取区间内的最大值。
func (e *ExperienceExtractor) extractExplicitYears(text string) (int, bool) {
	best := 0
	found := false
	for _, re := range explicitYearPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if v < minPlausibleYears || v > maxPlausibleYears {
				continue
			}
			if v > best {
				best = v
				found = true
			}
		}
	}
	return best, found
}

// extractFromDateRanges 对所有"起-止"区间求非负月份跨度之和，向上取整到年。
func (e *ExperienceExtractor) extractFromDateRanges(text string) (int, bool) {
	now := e.now()
	totalMonths := 0
	found := false

	for _, m := range reDateRange.FindAllStringSubmatch(text, -1) {
		start, ok := e.parseDateToken(m[1], now)
		if !ok {
			continue
		}
		end, ok := e.parseDateToken(m[2], now)
		if !ok {
			continue
		}
		months := monthsBetween(start, end)
		if months < 0 || months > maxPlausibleYears*12 {
			continue
		}
		totalMonths += months
		found = true
	}

	if !found || totalMonths <= 0 {
		return 0, false
	}
	return ceilYears(totalMonths), true
}

// extractFromEarliestMention 用最早出现的 Month YYYY 推算到当前的月数。
func (e *ExperienceExtractor) extractFromEarliestMention(text string) (int, bool) {
	now := e.now()
	var earliest time.Time
	found := false

	for _, m := range reMonthYear.FindAllStringSubmatch(text, -1) {
		t, ok := parseMonthYear(m[1], m[2])
		if !ok {
			continue
		}
		if !found || t.Before(earliest) {
			earliest = t
			found = true
		}
	}
	if !found {
		return 0, false
	}

	months := monthsBetween(earliest, now)
	if months <= 0 || months > maxPlausibleYears*12 {
		return 0, false
	}
	return ceilYears(months), true
}

// parseDateToken 解析 YYYY、Month YYYY 或 present/current/now。
func (e *ExperienceExtractor) parseDateToken(token string, now time.Time) (time.Time, bool) {
	token = strings.TrimSpace(strings.ToLower(token))
	switch token {
	case "present", "current", "now":
		return now, true
	}

	if m := reMonthYear.FindStringSubmatch(token); m != nil {
		return parseMonthYear(m[1], m[2])
	}

	if year, err := strconv.Atoi(token); err == nil && year >= 1950 && year <= now.Year()+1 {
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func parseMonthYear(monthStr, yearStr string) (time.Time, bool) {
	key := strings.ToLower(monthStr)
	if len(key) > 3 {
		key = key[:3]
	}
	month, ok := monthIndex[key]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1950 || year > 2100 {
		return time.Time{}, false
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

func monthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}

func ceilYears(months int) int {
	return (months + 11) / 12
}

// YearsScore 把岗位要求年限与简历年限换算成 [0,1] 分数。
// 岗位没写年限要求时视为天然满足，恒为 1.0（简历年限照常上报）；
// 写了要求但简历中抽不出年限时得 0。
// 其余按阶梯+线性的曲线打分：达标重奖，不达标平滑降级。
func YearsScore(requiredYears, resumeYears *int) float64 {
	if requiredYears == nil || *requiredYears <= 0 {
		return 1.0
	}
	if resumeYears == nil {
		return 0
	}

	ratio := float64(*resumeYears) / float64(*requiredYears)
	switch {
	case ratio >= 1.0:
		return 1.0
	case ratio >= 0.8:
		return 0.9
	case ratio >= 0.6:
		return 0.7
	default:
		score := ratio * 0.8
		if score < 0 {
			return 0
		}
		return score
	}
}
