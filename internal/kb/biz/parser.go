package biz

import (
	"context"
	"regexp"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/llm"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

const (
	jsonFenceOpen  = "```json"
	jsonFenceClose = "```"
	wordDelimiters = " \t\n.,;:!?"
)

var structuredDataRe = regexp.MustCompile(`(?s)<structured_data>\s*(.*?)\s*</structured_data>`)

type parserState int

const (
	stateNormal parserState = iota
	stateInJSONBlock
)

// StreamParser 增量解析模型输出。
//
// NORMAL 状态下按最后一个分隔符刷出文本，保证单词不被拆到两个 TextDelta；
// 遇到 ```json 进入 IN_JSON_BLOCK 缓冲直到闭合。闭合后的 JSON 对象同时含
// component 与 text 时输出一个 ComponentEvent 并立即终止，否则原样作为文本刷出。
type StreamParser struct {
	state      parserState
	word       strings.Builder
	block      strings.Builder
	full       strings.Builder
	terminated bool
	component  bool
	structured bool
	err        error
}

// NewStreamParser 创建解析器。
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Terminated 报告是否已输出组件事件，之后的输入全部丢弃。
func (p *StreamParser) Terminated() bool {
	return p.terminated
}

// ComponentEmitted 报告是否输出过组件事件。
func (p *StreamParser) ComponentEmitted() bool {
	return p.component
}

// StructuredEmitted 报告是否输出过结构化数据事件。
func (p *StreamParser) StructuredEmitted() bool {
	return p.structured
}

// Err 返回上游错误。
func (p *StreamParser) Err() error {
	return p.err
}

// Feed 处理一个片段，返回产生的事件。
func (p *StreamParser) Feed(chunk string) []model.StreamEvent {
	if p.terminated || chunk == "" {
		return nil
	}
	p.full.WriteString(chunk)

	var events []model.StreamEvent
	for chunk != "" && !p.terminated {
		switch p.state {
		case stateNormal:
			chunk = p.feedNormal(chunk, &events)
		case stateInJSONBlock:
			chunk = p.feedBlock(chunk, &events)
		}
	}
	return events
}

// feedNormal 返回进入 JSON 块后剩余待处理的输入。
func (p *StreamParser) feedNormal(chunk string, events *[]model.StreamEvent) string {
	p.word.WriteString(chunk)
	buf := p.word.String()

	if i := strings.Index(buf, jsonFenceOpen); i >= 0 {
		p.word.Reset()
		if before := buf[:i]; before != "" {
			*events = append(*events, model.TextDelta(before))
		}
		p.state = stateInJSONBlock
		p.block.Reset()
		return buf[i+len(jsonFenceOpen):]
	}

	if i := strings.LastIndexAny(buf, wordDelimiters); i >= 0 {
		*events = append(*events, model.TextDelta(buf[:i+1]))
		p.word.Reset()
		p.word.WriteString(buf[i+1:])
	}
	return ""
}

// feedBlock 返回闭合围栏之后剩余的输入。
func (p *StreamParser) feedBlock(chunk string, events *[]model.StreamEvent) string {
	p.block.WriteString(chunk)
	buf := p.block.String()

	i := strings.Index(buf, jsonFenceClose)
	if i < 0 {
		return ""
	}
	body, rest := buf[:i], buf[i+len(jsonFenceClose):]
	p.block.Reset()
	p.state = stateNormal

	if raw, ok := componentJSON(body); ok {
		*events = append(*events, model.ComponentEvent(raw))
		p.terminated = true
		p.component = true
		return ""
	}

	*events = append(*events, model.TextDelta(jsonFenceOpen+body+jsonFenceClose))
	return rest
}

// componentJSON 判断是否为含 component 与 text 的 JSON 对象。
func componentJSON(body string) ([]byte, bool) {
	raw := []byte(strings.TrimSpace(body))
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	_, hasComponent := obj["component"]
	_, hasText := obj["text"]
	if !hasComponent || !hasText {
		return nil, false
	}
	return raw, true
}

// flush 刷出缓冲中的全部文本，未闭合的 JSON 块按原文输出。
func (p *StreamParser) flush() []model.StreamEvent {
	var events []model.StreamEvent
	if p.state == stateInJSONBlock {
		events = append(events, model.TextDelta(jsonFenceOpen+p.block.String()))
		p.block.Reset()
		p.state = stateNormal
	}
	if p.word.Len() > 0 {
		events = append(events, model.TextDelta(p.word.String()))
		p.word.Reset()
	}
	return events
}

// Finish 在上游正常结束后调用：刷出缓冲，提取 <structured_data>，最后输出 Done。
func (p *StreamParser) Finish() []model.StreamEvent {
	if p.terminated {
		return []model.StreamEvent{model.Done()}
	}
	events := p.flush()
	if raw, visible, ok := ExtractStructuredData(p.full.String()); ok {
		ev := model.StructuredData(raw)
		ev.Text = visible
		events = append(events, ev)
		p.structured = true
	}
	p.terminated = true
	return append(events, model.Done())
}

// Fail 在上游出错时调用：刷出缓冲，输出错误提示文本，最后输出 Done。
func (p *StreamParser) Fail(err error) []model.StreamEvent {
	if p.terminated {
		return []model.StreamEvent{model.Done()}
	}
	p.err = err
	events := p.flush()
	events = append(events, model.TextDelta(streamErrorText(err)))
	p.terminated = true
	return append(events, model.Done())
}

func streamErrorText(err error) string {
	return "\n\n[Error] The answer could not be completed: " + err.Error()
}

// ExtractStructuredData 在全文中查找 <structured_data> 片段。
// 内容可解码时返回原始 JSON 和去掉该片段后的可见文本。
func ExtractStructuredData(text string) (raw []byte, visible string, ok bool) {
	m := structuredDataRe.FindStringSubmatchIndex(text)
	if m == nil {
		return nil, text, false
	}
	body := []byte(text[m[2]:m[3]])
	if !json.Valid(body) {
		return nil, text, false
	}
	visible = strings.TrimSpace(text[:m[0]] + text[m[1]:])
	return body, visible, true
}

// Run 从上游读取片段，解析后写入 out，并在结束时关闭 out。
// 输出组件事件后立即停止读取；ctx 取消时直接退出。
func (p *StreamParser) Run(ctx context.Context, in <-chan llm.StreamChunk, out chan<- model.StreamEvent) {
	defer close(out)

	send := func(events []model.StreamEvent) bool {
		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debugw("stream consumer cancelled", "error", ctx.Err().Error())
			return
		case chunk, ok := <-in:
			if !ok {
				send(p.Finish())
				return
			}
			if chunk.Err != nil {
				send(p.Fail(chunk.Err))
				return
			}
			if !send(p.Feed(chunk.Content)) {
				return
			}
			if p.terminated {
				send(p.Finish())
				return
			}
		}
	}
}
