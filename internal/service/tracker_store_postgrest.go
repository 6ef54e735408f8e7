package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"github.com/tracklog/internal/streak"
)

// RestClient 是 supabase.Client 与 postgrest.Client 的共同能力
type RestClient interface {
	From(table string) *postgrest.QueryBuilder
}

// defaultPageSize 与 Supabase 默认的 max-rows 一致
const defaultPageSize = 1000

// PostgrestTrackerStore 通过 PostgREST（Supabase）读取托管数据库中的记录表。
// 区间查询按 pageSize 分页，避免被服务端 max-rows 截断。
type PostgrestTrackerStore struct {
	client   RestClient
	pageSize int
}

// NewPostgrestTrackerStore 使用现有客户端构造
func NewPostgrestTrackerStore(client RestClient) *PostgrestTrackerStore {
	return &PostgrestTrackerStore{client: client, pageSize: defaultPageSize}
}

// NewSupabaseTrackerStore 使用 Supabase 项目地址与 key 构造
func NewSupabaseTrackerStore(url, key string) (*PostgrestTrackerStore, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return NewPostgrestTrackerStore(client), nil
}

// ExistsOnDate 实现 AutoSourceStore
func (s *PostgrestTrackerStore) ExistsOnDate(ctx context.Context, source AutoSource, date time.Time) (bool, error) {
	table, err := LookupAutoSource(string(source))
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	resp, _, err := s.client.From(table.Table).
		Select(table.DateColumn, "", false).
		Eq(table.DateColumn, streak.FormatDate(date)).
		Limit(1, "").
		Execute()
	if err != nil {
		return false, fmt.Errorf("query %s: %w", table.Table, err)
	}

	rows, err := decodeRows(resp)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", table.Table, err)
	}
	return len(rows) > 0, nil
}

// ExistingDatesInRange 实现 AutoSourceStore，同一天多条记录只计一次
func (s *PostgrestTrackerStore) ExistingDatesInRange(ctx context.Context, source AutoSource, start, end time.Time) (streak.DateSet, error) {
	table, err := LookupAutoSource(string(source))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := selectAll[map[string]any](ctx, s.pageSize, func() *postgrest.FilterBuilder {
		return s.client.From(table.Table).
			Select(table.DateColumn, "", false).
			Gte(table.DateColumn, streak.FormatDate(start)).
			Lte(table.DateColumn, streak.FormatDate(end)).
			Order(table.DateColumn, &postgrest.OrderOpts{Ascending: true}).
			Order("id", &postgrest.OrderOpts{Ascending: true})
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Table, err)
	}

	set := streak.NewDateSet()
	for _, row := range rows {
		if value, ok := row[table.DateColumn].(string); ok {
			set.AddString(value)
		}
	}
	return set, nil
}

// DailyWorkoutVolume 实现 WorkoutVolumeStore，在本地按日求和
func (s *PostgrestTrackerStore) DailyWorkoutVolume(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type volumeRow struct {
		LogDate string  `json:"log_date"`
		Volume  float64 `json:"volume"`
	}
	rows, err := selectAll[volumeRow](ctx, s.pageSize, func() *postgrest.FilterBuilder {
		return s.client.From("workouts").
			Select("log_date,volume", "", false).
			Gte("log_date", streak.FormatDate(start)).
			Lte("log_date", streak.FormatDate(end)).
			Order("log_date", &postgrest.OrderOpts{Ascending: true}).
			Order("id", &postgrest.OrderOpts{Ascending: true})
	})
	if err != nil {
		return nil, fmt.Errorf("query workouts: %w", err)
	}

	daily := make(map[string]float64, len(rows))
	for _, row := range rows {
		key := row.LogDate
		if len(key) > len(streak.DateLayout) {
			key = key[:len(streak.DateLayout)]
		}
		daily[key] += row.Volume
	}
	return daily, nil
}

func decodeRows(resp []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if len(resp) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// selectAll 用 Range 逐页读取，直到某页不足 pageSize。
// query 每次调用都需返回新的查询，排序需稳定。
func selectAll[T any](ctx context.Context, pageSize int, query func() *postgrest.FilterBuilder) ([]T, error) {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	var all []T
	for from := 0; ; from += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, _, err := query().Range(from, from+pageSize-1, "").Execute()
		if err != nil {
			return nil, err
		}

		var page []T
		if len(resp) > 0 {
			if err := json.Unmarshal(resp, &page); err != nil {
				return nil, fmt.Errorf("decode page at offset %d: %w", from, err)
			}
		}
		all = append(all, page...)
		// 服务端未按 Range 截断时也在此结束
		if len(page) != pageSize {
			return all, nil
		}
	}
}
