package content

import (
	"regexp"
	"strings"
)

// Local redaction applied before anything reaches the speaker or an LLM.
// Word-level hits are masked; sentences naming listed political figures are
// replaced whole, since masking a name still leaves the sentence pointed.

// sensitiveWords are masked with *** wherever they appear.
var sensitiveWords = []string{
	"死亡", "袭击", "爆炸", "恐怖", "暴力", "冲突", "战争", "军事", "武器",
	"六四", "法轮功", "台独", "疆独", "藏独", "港独", "敏感政治事件",
	"习近平", "李强", "王沪宁", "蔡奇", "丁薛祥", "李希", "韩正", "赵乐际", "王岐山",
}

// leaderNames trigger whole-sentence replacement.
var leaderNames = []string{
	"习近平", "李强", "王沪宁", "蔡奇", "丁薛祥", "李希", "韩正", "赵乐际", "王岐山",
	"胡锦涛", "江泽民", "朱镕基", "李鹏", "温家宝", "李瑞环", "吴邦国", "贾庆林", "曾庆红",
	"胡耀邦", "华国锋", "邓小平", "陈云", "叶剑英", "李先念", "宋庆龄", "林彪", "周恩来", "毛泽东",
}

// leaderSentenceReplacement is the neutral phrase a removed sentence becomes.
const leaderSentenceReplacement = "相关情况正在持续发展。"

var (
	sensitivePattern      *regexp.Regexp
	leaderSentencePattern *regexp.Regexp
)

func init() {
	sensitivePattern = regexp.MustCompile("(?i)" + joinQuoted(sensitiveWords))
	leaderSentencePattern = regexp.MustCompile(
		`[^。！？]*(` + joinQuoted(leaderNames) + `)[^。！？]*[。！？]`)
}

func joinQuoted(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

// FilterSensitive masks listed words and strips markup from feed content.
func FilterSensitive(text string) string {
	return StripMarkup(sensitivePattern.ReplaceAllString(text, "***"))
}

// RemoveLeaderSentences replaces entire sentences naming listed figures with
// a neutral phrase.
func RemoveLeaderSentences(text string) string {
	return leaderSentencePattern.ReplaceAllString(text, leaderSentenceReplacement)
}
