package utils

import "sort"

// Server-side messages for envelope text. Detail strings from services stay
// in English; only the summary line is localized.
var translations = map[string]map[string]string{
	"en": {
		"health.ok":         "ok",
		"survey.created":    "Survey created",
		"survey.updated":    "Survey updated",
		"survey.deleted":    "Survey and its responses deleted",
		"response.recorded": "Response recorded",
		"verify.ok":         "Password verified",
		"verify.failed":     "Invalid credentials",
		"list.fallback":     "Surveys are temporarily unavailable",
		"error.bad_request": "Malformed request body",
		"error.invalid":     "Some fields are missing or invalid",
		"error.not_found":   "Survey not found",
		"error.forbidden":   "Invalid credentials",
		"error.inactive":    "This survey is not accepting responses",
		"error.persistence": "The service is temporarily unavailable",
		"error.rate_limit":  "Too many submissions, try again shortly",
		"error.internal":    "Internal server error",
	},
	"zh": {
		"health.ok":         "好的",
		"survey.created":    "问卷已创建",
		"survey.updated":    "问卷已更新",
		"survey.deleted":    "问卷及其回答已删除",
		"response.recorded": "回答已提交",
		"verify.ok":         "密码验证成功",
		"verify.failed":     "密码错误",
		"list.fallback":     "问卷列表暂时不可用",
		"error.bad_request": "请求格式错误",
		"error.invalid":     "部分字段缺失或无效",
		"error.not_found":   "问卷不存在",
		"error.forbidden":   "凭证无效",
		"error.inactive":    "该问卷已停止收集回答",
		"error.persistence": "服务暂时不可用",
		"error.rate_limit":  "提交过于频繁，请稍后再试",
		"error.internal":    "服务器内部错误",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if v, ok := translations[locale][key]; ok {
		return v
	}
	if v, ok := translations["en"][key]; ok {
		return v
	}
	return key
}

// Locales lists the locales that have translations, sorted.
func Locales() []string {
	out := make([]string, 0, len(translations))
	for l := range translations {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
