package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestGetReturnsStoredValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "bf:stepback:abc")).
		Return(mock.Result(mock.RedisString("청년 주거 지원")))

	value, ok, err := NewWithClient(client, "bf:").Get(context.Background(), "stepback:abc")
	if err != nil || !ok || value != "청년 주거 지원" {
		t.Fatalf("Get() = %q, %v, %v", value, ok, err)
	}
}

func TestGetMissReportsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisNil()))

	_, ok, err := NewWithClient(client, "").Get(context.Background(), "k")
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestGetPropagatesTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	if _, _, err := NewWithClient(client, "").Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSetUsesExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	client.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "3600")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := NewWithClient(client, "").Set(context.Background(), "k", "v", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}
