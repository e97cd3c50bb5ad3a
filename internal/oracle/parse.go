package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// 模型偶尔把 JSON 包在 markdown 代码块里，或者丢引号丢逗号，
// 统一先剥代码块再过一遍修复器，最后用 schema 把关。

const sentimentSchemaJSON = `{
	"type": "object",
	"required": ["score", "sentiment", "reason"],
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 100},
		"sentiment": {"enum": ["BULLISH", "BEARISH", "NEUTRAL"]},
		"reason": {"type": "string"},
		"stop_loss_reason": {"type": "string"}
	}
}`

var sentimentSchema = jsonschema.MustCompileString("sentiment.json", sentimentSchemaJSON)

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func repairJSON(raw string) (string, error) {
	s := stripCodeFence(raw)
	if json.Valid([]byte(s)) {
		return s, nil
	}
	fixed, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return "", fmt.Errorf("oracle: JSON 修复失败: %w", err)
	}
	return fixed, nil
}

func parseSentiment(raw string) (SentimentResult, error) {
	fixed, err := repairJSON(raw)
	if err != nil {
		return SentimentResult{}, err
	}
	var doc any
	if err := json.Unmarshal([]byte(fixed), &doc); err != nil {
		return SentimentResult{}, fmt.Errorf("oracle: 响应不是合法 JSON: %w", err)
	}
	if err := sentimentSchema.Validate(doc); err != nil {
		return SentimentResult{}, fmt.Errorf("oracle: 响应不符合约定结构: %w", err)
	}
	return SentimentResult{
		Score:          gjson.Get(fixed, "score").Float(),
		Sentiment:      gjson.Get(fixed, "sentiment").String(),
		Reason:         gjson.Get(fixed, "reason").String(),
		StopLossReason: gjson.Get(fixed, "stop_loss_reason").String(),
	}, nil
}

func parseMovers(raw string) ([]Mover, error) {
	fixed, err := repairJSON(raw)
	if err != nil {
		return nil, err
	}
	root := gjson.Parse(fixed)
	// 模型偶尔返回单个对象而不是数组。
	if root.IsObject() {
		root = gjson.Parse("[" + fixed + "]")
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("oracle: movers 响应既不是数组也不是对象")
	}
	var movers []Mover
	root.ForEach(func(_, item gjson.Result) bool {
		person := item.Get("person").String()
		if person == "" {
			return true
		}
		movers = append(movers, Mover{
			Person:   person,
			Asset:    item.Get("asset").String(),
			Impact:   item.Get("impact").Float(),
			Strategy: item.Get("strategy").String(),
			Reason:   item.Get("reason").String(),
		})
		return len(movers) < 3
	})
	return movers, nil
}

func parseStance(raw string) (StanceForecast, error) {
	fixed, err := repairJSON(raw)
	if err != nil {
		return StanceForecast{}, err
	}
	if !gjson.Get(fixed, "hawk_prob").Exists() {
		return StanceForecast{}, fmt.Errorf("oracle: 回溯响应缺少 hawk_prob")
	}
	return StanceForecast{
		HawkProb:        gjson.Get(fixed, "hawk_prob").Float(),
		PredictionScore: gjson.Get(fixed, "prediction_score").Float(),
		Reason:          gjson.Get(fixed, "reason").String(),
	}, nil
}
