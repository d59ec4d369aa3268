package search

import "testing"

func TestSnippetCentersOnQuery(t *testing.T) {
	content := "# 标题\n\n这是一段很长的描述文字，中间包含了 access_token 这个关键词，后面还有更多内容用于测试窗口截断行为。"
	out := Snippet(content, "access_token", []string{"access_token"})
	if out == "" {
		t.Fatal("expected non-empty snippet")
	}
	if !contains(out, "access_token") {
		t.Errorf("expected snippet to contain query, got %q", out)
	}
}

func TestSnippetFallsBackToPrefixWhenNoMatch(t *testing.T) {
	content := "完全不相关的内容在这里展示一下效果"
	out := Snippet(content, "不存在的查询词", nil)
	if out == "" {
		t.Fatal("expected non-empty fallback snippet")
	}
}

func TestSnippetTruncatesWithEllipsis(t *testing.T) {
	long := ""
	for i := 0; i < 500; i++ {
		long += "字"
	}
	out := Snippet(long, "", nil)
	if len([]rune(out)) > snippetWindow+2 {
		t.Errorf("expected snippet capped near %d runes, got %d", snippetWindow, len([]rune(out)))
	}
}
