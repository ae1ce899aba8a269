package llmclient

import "fmt"

const qualitySystemPrompt = `You are a senior software engineer reviewing code for quality. Respond with a single JSON object: {"score": 0-10, "issues": [{"type","severity","title","description","line","recommendation"}], "suggestions": ["..."], "metrics": {"maintainability": 0-10, "readability": 0-10, "complexity": 0-10}}. Respond with JSON only, no prose.`

const securitySystemPrompt = `You are a security analyst reviewing code for vulnerabilities. Respond with a JSON array of issues: [{"type","severity","title","description","line","recommendation"}]. Respond with JSON only, no prose.`

const suggestionsSystemPrompt = `You are a senior engineer proposing improvements. Respond with a JSON array: [{"type","priority","title","description","line","example"}]. Respond with JSON only, no prose.`

func qualityUserPrompt(fileContent, filePath, language string) string {
	return fmt.Sprintf("File: %s\nLanguage: %s\n\n```%s\n%s\n```\n\nEvaluate this file's quality.", filePath, language, language, fileContent)
}

func securityUserPrompt(fileContent, filePath, language string) string {
	return fmt.Sprintf("File: %s\nLanguage: %s\n\n```%s\n%s\n```\n\nIdentify security vulnerabilities in this file.", filePath, language, language, fileContent)
}

func suggestionsUserPrompt(fileContent, filePath, language string) string {
	return fmt.Sprintf("File: %s\nLanguage: %s\n\n```%s\n%s\n```\n\nSuggest concrete improvements to this file.", filePath, language, language, fileContent)
}
