package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDefaults reads classification placeholders from a YAML file:
//
//	knowledge_points: [题型分析, 解题方法]
//	prerequisites: [相关基础概念, 基本运算能力]
//	subject: 综合
//
// Keys missing from the file keep their built-in values.
func LoadDefaults(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("read defaults: %w", err)
	}

	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Defaults{}, fmt.Errorf("parse defaults %s: %w", path, err)
	}
	d.KnowledgePoints = cleanItems(d.KnowledgePoints)
	d.Prerequisites = cleanItems(d.Prerequisites)
	return d.withFallbacks(), nil
}
