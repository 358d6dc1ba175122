package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"zhibo-copilot-go/src/core/utils"
)

func newRedisTestStore(t *testing.T) Store {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("启动miniredis失败: %v", err)
	}
	t.Cleanup(mr.Close)

	s, err := NewRedis(Config{
		MaxEntries: 10,
		TTL:        utils.Duration(time.Minute),
		Redis:      &RedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("NewRedis失败: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	entry := Entry{
		SessionID:  "live-1",
		Text:       "今天给大家推荐一款口红。",
		Speaker:    "host",
		Confidence: 0.82,
		Threshold:  0.6,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.Append(ctx, entry); err != nil {
		t.Fatalf("Append失败: %v", err)
	}

	entries, err := s.Recent(ctx, "live-1", 10)
	if err != nil {
		t.Fatalf("Recent失败: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != entry.Text {
		t.Fatalf("回放内容不符: %+v", entries)
	}
	if entries[0].Confidence != entry.Confidence {
		t.Fatalf("置信度丢失: %+v", entries[0])
	}

	ids, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions失败: %v", err)
	}
	if len(ids) != 1 || ids[0] != "live-1" {
		t.Fatalf("会话列表不符: %v", ids)
	}

	if err := s.Clear(ctx, "live-1"); err != nil {
		t.Fatalf("Clear失败: %v", err)
	}
	entries, err = s.Recent(ctx, "live-1", 10)
	if err != nil {
		t.Fatalf("Recent失败: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("清除后仍有记录: %+v", entries)
	}
}

func TestRedisStore_TrimsToMaxEntries(t *testing.T) {
	ctx := context.Background()
	s := newRedisTestStore(t)

	for i := 0; i < 30; i++ {
		err := s.Append(ctx, Entry{SessionID: "live-1", Text: fmt.Sprintf("第%d句", i)})
		if err != nil {
			t.Fatalf("Append失败: %v", err)
		}
	}

	entries, err := s.Recent(ctx, "live-1", 0)
	if err != nil {
		t.Fatalf("Recent失败: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("期望保留10条，实际%d条", len(entries))
	}
	if entries[0].Text != "第20句" {
		t.Fatalf("最旧记录不符: %+v", entries[0])
	}
}

func TestNewRedis_RequiresConfig(t *testing.T) {
	if _, err := NewRedis(Config{MaxEntries: 10}); err == nil {
		t.Fatal("缺少redis配置时应当报错")
	}
	if _, err := NewRedis(Config{MaxEntries: 10, Redis: &RedisConfig{}}); err == nil {
		t.Fatal("缺少地址时应当报错")
	}
}
