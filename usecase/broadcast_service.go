package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
	"github.com/mihomelab/xiaoai-broadcast/internal/content"
)

const (
	domesticChannel      = "国内"
	internationalChannel = "国际"
	headlinesPerChannel  = 20

	embodiedQuery = `ti:"embodied intelligence" OR ti:"embodied AI" OR ti:"embodied agent" OR ti:"embodied robot" OR ti:"embodied learning" OR ti:"embodied cognition"`
	llmQuery      = `ti:"large language model" OR ti:"LLM" OR ti:"foundation model" OR ti:"transformer" OR ti:"language model" OR ti:"GPT" OR ti:"BERT"`
	papersPerTopic = 15
	paperDaysBack  = 7

	paperSummaryLimit = 150

	// fallbackScript is spoken when no source yields anything; a broadcast
	// run always produces audible output.
	fallbackScript = "由于网络连接问题，暂时无法获取最新新闻信息。时代奔涌，技术与城市并进，愿你在变化中心有所定，在信息中看见世界的光。"
)

// BroadcastService assembles a daily broadcast script from news and paper
// feeds via an LLM, then plays it.
type BroadcastService struct {
	news     repositories.NewsSource
	papers   repositories.PaperSource
	llm      repositories.LargeLanguageModel
	playback *PlaybackService
	logger   *zap.Logger
}

// NewBroadcastService creates a broadcast service.
func NewBroadcastService(
	news repositories.NewsSource,
	papers repositories.PaperSource,
	llm repositories.LargeLanguageModel,
	playback *PlaybackService,
	logger *zap.Logger,
) *BroadcastService {
	return &BroadcastService{
		news:     news,
		papers:   papers,
		llm:      llm,
		playback: playback,
		logger:   logger,
	}
}

// Run composes the script and plays it.
func (s *BroadcastService) Run(ctx context.Context) (*entities.RunReport, error) {
	script, err := s.ComposeScript(ctx)
	if err != nil {
		return nil, err
	}
	return s.playback.PlayContent(ctx, script)
}

// ComposeScript gathers sources and asks the model for a single speakable
// paragraph. A failed source or model call degrades the script, it never
// aborts the broadcast.
func (s *BroadcastService) ComposeScript(ctx context.Context) (string, error) {
	news := s.gatherNews(ctx)
	papers := s.gatherPapers(ctx)

	if len(news) == 0 && len(papers) == 0 {
		s.logger.Warn("No source content available, using fallback script")
		return fallbackScript, nil
	}

	summary := NewsSummary(news)
	if len(papers) > 0 {
		summary += " " + PaperSummary(papers)
	}

	script, err := s.llm.Generate(ctx, broadcastPrompt(summary))
	if err != nil {
		s.logger.Error("Script generation failed, using fallback", zap.Error(err))
		return fallbackScript, nil
	}

	return s.Sanitize(ctx, script), nil
}

// Sanitize softens the script for family playback: sentences naming listed
// figures are replaced locally, then the model rephrases remaining sensitive
// passages. If the model call fails the locally filtered text is kept.
func (s *BroadcastService) Sanitize(ctx context.Context, text string) string {
	text = content.RemoveLeaderSentences(text)

	softened, err := s.llm.Generate(ctx, sanitizePrompt(text))
	if err != nil {
		s.logger.Warn("Sanitize pass failed, keeping locally filtered text", zap.Error(err))
		return text
	}
	return softened
}

func (s *BroadcastService) gatherNews(ctx context.Context) []entities.NewsItem {
	var all []entities.NewsItem
	for _, channel := range []string{domesticChannel, internationalChannel} {
		items, err := s.news.Headlines(ctx, channel, headlinesPerChannel)
		if err != nil {
			s.logger.Warn("News channel fetch failed",
				zap.String("channel", channel),
				zap.Error(err))
			continue
		}
		all = append(all, items...)
	}
	return all
}

func (s *BroadcastService) gatherPapers(ctx context.Context) []entities.Paper {
	var all []entities.Paper
	for _, query := range []string{embodiedQuery, llmQuery} {
		papers, err := s.papers.Recent(ctx, query, papersPerTopic, paperDaysBack)
		if err != nil {
			s.logger.Warn("Paper fetch failed", zap.Error(err))
			continue
		}
		all = append(all, papers...)
	}
	return all
}

// NewsSummary renders headlines into the numbered digest the prompt expects.
func NewsSummary(items []entities.NewsItem) string {
	if len(items) == 0 {
		return "暂无最新新闻信息。"
	}

	var b strings.Builder
	b.WriteString("以下是今日重要新闻摘要：")
	for i, item := range items {
		fmt.Fprintf(&b, " %d、%s（来源：%s，时间：%s）。", i+1, item.Title, item.Source, item.Time)
	}
	return b.String()
}

// PaperSummary renders papers into a digest with truncated abstracts and the
// first three authors.
func PaperSummary(papers []entities.Paper) string {
	if len(papers) == 0 {
		return "暂无最新AI研究论文信息。"
	}

	var b strings.Builder
	b.WriteString("以下是arXiv最新AI研究论文摘要：")
	for i, paper := range papers {
		authors := paper.Authors
		if len(authors) > 3 {
			authors = authors[:3]
		}
		fmt.Fprintf(&b, " %d、%s（作者：%s，发布时间：%s）。摘要：%s",
			i+1, paper.Title, strings.Join(authors, ", "), paper.Published,
			content.Truncate(paper.Summary, paperSummaryLimit))
	}
	return b.String()
}

func broadcastPrompt(summary string) string {
	return `你是一位具备新闻分析与科研汇总能力的智能播报助手。请基于提供的新闻数据，生成一段完整自然、适合语音播报的全球信息摘要。

【新闻数据】
` + summary + `

【任务要求】
请从上述新闻中精选20条最重要的新闻，整合为一段完整的播报稿：风格连贯、有逻辑有节奏、无编号、可自然朗读、不中断。

【语言与表达要求】
- 每条新闻必须包含具体国家名称、事件时间与主体之间的互动关系
- 避免使用敏感词汇，改用"人道局势恶化""局部局势紧张"等委婉表述
- 不使用"今天""刚刚"这类即时词汇
- 如有引用新闻，请注明来源
- 如有AI科研内容，使用专业表达，不需简化术语

【收尾要求】
请在结尾加入一句温和的收尾语，用诗意但平实的语言收束整体内容。

【输出格式要求】
整体输出为一个自然段，不编号、不列清单、不换行，总长度建议在1500字左右。

请根据以上要求生成一次完整的播报内容。`
}

func sanitizePrompt(text string) string {
	return `你是一位专业的文本优化助手，专门为语音设备优化播报内容。

请仅对以下内容进行适度无害化处理：
- 只需规避常见敏感词，对于涉及这些内容的句子，请用"相关情况正在持续发展"或"各方正在积极沟通"等模糊表达替代。
- 其他内容无需改写，保持原文风格和结构。
- 适合家庭环境下的语音播报。

请直接返回处理后的内容，不要添加任何说明文字：

` + text
}
