package service

import (
	"strings"
	"testing"
	"time"
)

func TestParseDateOrISO(t *testing.T) {
	got, err := ParseDateOrISO("2026-03-02", false)
	if err != nil {
		t.Fatalf("解析纯日期失败: %v", err)
	}
	if LocalISO(got) != "2026-03-02T00:00:00" {
		t.Errorf("纯日期应补齐为零点: %s", LocalISO(got))
	}

	got, err = ParseDateOrISO("2026-03-02", true)
	if err != nil {
		t.Fatalf("解析纯日期失败: %v", err)
	}
	if LocalISO(got) != "2026-03-02T23:59:59" {
		t.Errorf("dayEnd 应补齐为 23:59:59: %s", LocalISO(got))
	}

	got, err = ParseDateOrISO("2026-03-02T08:15:00", false)
	if err != nil {
		t.Fatalf("解析完整时间失败: %v", err)
	}
	if LocalISO(got) != "2026-03-02T08:15:00" {
		t.Errorf("完整时间应原样保留: %s", LocalISO(got))
	}

	if _, err := ParseDateOrISO("not-a-date", false); err == nil {
		t.Error("非法输入应报错")
	}
}

func TestParseDateOrISO_夏令时切换日末秒(t *testing.T) {
	// 2026-03-29 华沙进入夏令时，当天只有 23 小时
	got, err := ParseDateOrISO("2026-03-29", true)
	if err != nil {
		t.Fatalf("解析纯日期失败: %v", err)
	}
	if LocalISO(got) != "2026-03-29T23:59:59" {
		t.Errorf("夏令时切换日的 dayEnd 仍应为 23:59:59: %s", LocalISO(got))
	}
}

func TestMondayOf(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"2026-03-02", "2026-03-02"}, // 周一本身
		{"2026-03-04", "2026-03-02"}, // 周三
		{"2026-03-08", "2026-03-02"}, // 周日
	}
	for _, tc := range cases {
		in, err := ParseDateOrISO(tc.input, false)
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		got := MondayOf(in)
		if !strings.HasPrefix(LocalISO(got), tc.want) {
			t.Errorf("MondayOf(%s) = %s，期望 %s", tc.input, LocalISO(got), tc.want)
		}
	}
}

func TestWeekRange(t *testing.T) {
	in, _ := ParseDateOrISO("2026-03-04", false)
	start, end := WeekRange(in)
	if LocalISO(start) != "2026-03-02T00:00:00" {
		t.Errorf("周起点不符: %s", LocalISO(start))
	}
	if LocalISO(end) != "2026-03-09T00:00:00" {
		t.Errorf("周终点不符: %s", LocalISO(end))
	}
}

func TestResolveRange(t *testing.T) {
	weekStart, _ := ParseDateOrISO("2026-03-02", false)

	// 两端缺省回落到所在周
	start, end, err := ResolveRange(weekStart, "", "")
	if err != nil {
		t.Fatalf("缺省范围失败: %v", err)
	}
	if LocalISO(start) != "2026-03-02T00:00:00" || LocalISO(end) != "2026-03-09T00:00:00" {
		t.Errorf("缺省范围不符: %s - %s", LocalISO(start), LocalISO(end))
	}

	// 纯日期终点扩展为次日零点
	start, end, err = ResolveRange(weekStart, "2026-03-02", "2026-03-15")
	if err != nil {
		t.Fatalf("显式范围失败: %v", err)
	}
	if LocalISO(end) != "2026-03-16T00:00:00" {
		t.Errorf("纯日期终点应扩展为次日零点: %s", LocalISO(end))
	}

	// 终点不晚于起点报错
	if _, _, err := ResolveRange(weekStart, "2026-03-15", "2026-03-02"); err == nil {
		t.Error("倒置范围应报错")
	}
}

func TestResolveRange_单端缺省补齐(t *testing.T) {
	weekStart, _ := ParseDateOrISO("2026-03-02", false)

	// 只给起点，终点回落到周末端
	start, end, err := ResolveRange(weekStart, "2026-02-23", "")
	if err != nil {
		t.Fatalf("仅起点范围失败: %v", err)
	}
	if LocalISO(start) != "2026-02-23T00:00:00" || LocalISO(end) != "2026-03-09T00:00:00" {
		t.Errorf("仅起点范围不符: %s - %s", LocalISO(start), LocalISO(end))
	}

	// 只给终点，起点回落到周起端
	start, end, err = ResolveRange(weekStart, "", "2026-03-15")
	if err != nil {
		t.Fatalf("仅终点范围失败: %v", err)
	}
	if LocalISO(start) != "2026-03-02T00:00:00" || LocalISO(end) != "2026-03-16T00:00:00" {
		t.Errorf("仅终点范围不符: %s - %s", LocalISO(start), LocalISO(end))
	}
}

func TestLastThreeMonths(t *testing.T) {
	now := time.Date(2026, 5, 31, 12, 0, 0, 0, warsaw)
	start, end := LastThreeMonths(now)
	// 2月没有31号，钳到月末
	if LocalISO(start) != "2026-02-28T00:00:00" {
		t.Errorf("起点应钳到 2 月末: %s", LocalISO(start))
	}
	if LocalISO(end) != "2026-05-31T23:59:59" {
		t.Errorf("终点应为今日 23:59:59: %s", LocalISO(end))
	}

	now = time.Date(2026, 2, 10, 12, 0, 0, 0, warsaw)
	start, _ = LastThreeMonths(now)
	// 跨年回退
	if LocalISO(start) != "2025-11-10T00:00:00" {
		t.Errorf("跨年起点不符: %s", LocalISO(start))
	}
}

func TestAPIISO_带偏移(t *testing.T) {
	in, _ := ParseDateOrISO("2026-03-02T08:15:00", false)
	got := APIISO(in)
	if !strings.HasPrefix(got, "2026-03-02T08:15:00+") {
		t.Errorf("API 时间应带 UTC 偏移: %s", got)
	}
}
