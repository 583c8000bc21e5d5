package matching

import (
	"regexp"
	"strings"
	"unicode"
)

// SnippetContainsTerm 判断片段文本是否在词面上包含给定词项。
// 依次尝试：直接子串、词边界、归一化形式子串、多词合取、模糊编辑距离。
// 任何一条命中即认为包含。
func SnippetContainsTerm(snippet, term string) bool {
	s := strings.ToLower(snippet)
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return false
	}

	// 1. 直接子串
	if strings.Contains(s, t) {
		return true
	}

	// 2. 词边界匹配（对"go"这类短词比裸子串更可靠，
	//    但子串失败时它也一定失败，这里为了行为完整保留）
	if wordBoundaryMatch(s, t) {
		return true
	}

	// 3. 归一化形式：去掉标点和分隔符后再比，"Node.js"和"nodejs"等价
	ns, nt := normalizeTerm(s), normalizeTerm(t)
	if nt != "" && strings.Contains(ns, nt) {
		return true
	}

	// 4. 多词合取：词项的每个词都以词边界形式出现即算命中
	words := strings.Fields(t)
	if len(words) > 1 {
		all := true
		for _, w := range words {
			if !wordBoundaryMatch(s, w) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}

	// 5. 模糊匹配：长度>=5的单词词项，允许与片段分词有1个编辑距离
	if len(words) == 1 && len([]rune(t)) >= 5 {
		for _, token := range strings.FieldsFunc(s, isSeparatorRune) {
			if editDistanceAtMostOne(token, t) {
				return true
			}
		}
	}

	return false
}

// SnippetContainsAnyTerm 任一词项命中即为真
func SnippetContainsAnyTerm(snippet string, terms []string) bool {
	for _, term := range terms {
		if SnippetContainsTerm(snippet, term) {
			return true
		}
	}
	return false
}

func wordBoundaryMatch(text, term string) bool {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// normalizeTerm 去掉所有非字母数字字符
func normalizeTerm(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func isSeparatorRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// editDistanceAtMostOne 判断两个字符串的Levenshtein距离是否不超过1。
// 只处理距离0/1的情形，避免完整DP。
func editDistanceAtMostOne(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la > lb {
		ra, rb = rb, ra
		la, lb = lb, la
	}
	if lb-la > 1 {
		return false
	}

	if la == lb {
		diff := 0
		for i := range ra {
			if ra[i] != rb[i] {
				diff++
				if diff > 1 {
					return false
				}
			}
		}
		return true
	}

	// 长度差1：允许一次插入
	i, j, used := 0, 0, false
	for i < la && j < lb {
		if ra[i] == rb[j] {
			i++
			j++
			continue
		}
		if used {
			return false
		}
		used = true
		j++
	}
	return true
}
