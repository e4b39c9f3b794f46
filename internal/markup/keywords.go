package markup

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryKeywords maps a post category to the words that vote for it.
type CategoryKeywords struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Keywords drives tagging, title cleanup and categorization.
type Keywords struct {
	TechKeywords    []string           `yaml:"techKeywords"`
	StopWords       []string           `yaml:"stopWords"`
	Categories      []CategoryKeywords `yaml:"categories"`
	DefaultCategory string             `yaml:"defaultCategory"`
}

// DefaultKeywords returns the built-in keyword tables.
func DefaultKeywords() Keywords {
	return Keywords{
		TechKeywords: []string{
			"Go", "Python", "JavaScript", "TypeScript", "Rust", "Java", "Kotlin", "Swift",
			"React", "Vue", "Node.js", "Django", "Flask", "Spring",
			"MySQL", "PostgreSQL", "SQLite", "Redis", "MongoDB", "Elasticsearch",
			"Docker", "Kubernetes", "Terraform", "Git", "GitHub", "Linux", "Nginx",
			"AWS", "Azure", "GCP", "gRPC", "GraphQL", "WebAssembly",
		},
		StopWords: []string{"a", "an", "the", "of", "and", "or", "to", "in", "on", "for", "with", "my", "some"},
		Categories: []CategoryKeywords{
			{"Programming Languages", []string{"Python", "JavaScript", "TypeScript", "Java", "C++", "C#", "Golang", "Rust", "编程语言"}},
			{"Frontend", []string{"React", "Vue", "Angular", "HTML", "CSS", "Webpack", "frontend", "前端"}},
			{"Backend", []string{"Node.js", "Express", "Django", "Flask", "Spring", "backend", "API", "后端"}},
			{"Databases", []string{"MySQL", "MongoDB", "PostgreSQL", "Redis", "SQLite", "database", "SQL", "数据库"}},
			{"DevOps", []string{"Docker", "Kubernetes", "CI/CD", "Jenkins", "Terraform", "DevOps", "运维"}},
			{"Cloud", []string{"AWS", "Azure", "GCP", "cloud", "阿里云", "腾讯云", "云计算"}},
			{"AI", []string{"machine learning", "deep learning", "TensorFlow", "PyTorch", "LLM", "neural network", "机器学习", "深度学习"}},
			{"Mobile", []string{"Android", "iOS", "React Native", "Flutter", "移动开发"}},
			{"Architecture", []string{"architecture", "microservice", "distributed", "design pattern", "架构", "微服务", "分布式"}},
			{"Testing", []string{"unit test", "integration test", "test framework", "testing", "测试"}},
			{"Security", []string{"security", "encryption", "authentication", "authorization", "安全", "加密"}},
			{"Tools", []string{"VSCode", "IDE", "Vim", "tooling", "productivity", "工具", "效率"}},
		},
		DefaultCategory: "Tech Notes",
	}
}

// LoadKeywords reads a YAML (or JSON) keywords file. Sections missing from
// the file keep their built-in values.
func LoadKeywords(path string) (Keywords, error) {
	kw := DefaultKeywords()
	data, err := os.ReadFile(path)
	if err != nil {
		return kw, fmt.Errorf("reading keywords file: %w", err)
	}
	var file Keywords
	if err := yaml.Unmarshal(data, &file); err != nil {
		return kw, fmt.Errorf("parsing keywords file %s: %w", path, err)
	}
	if len(file.TechKeywords) > 0 {
		kw.TechKeywords = file.TechKeywords
	}
	if len(file.StopWords) > 0 {
		kw.StopWords = file.StopWords
	}
	if len(file.Categories) > 0 {
		kw.Categories = file.Categories
	}
	if file.DefaultCategory != "" {
		kw.DefaultCategory = file.DefaultCategory
	}
	return kw, nil
}
