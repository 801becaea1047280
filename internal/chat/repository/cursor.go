package repository

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PageCursor conversation 列表分頁游標 (updated_at desc, _id desc)
type PageCursor struct {
	Ts int64
	ID string
}

// EncodePageCursor 轉 opaque cursor
func EncodePageCursor(ts int64, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d:%s", ts, id)))
}

// DecodePageCursor 解析 opaque cursor, 空字串代表第一頁
func DecodePageCursor(cursor string) (*PageCursor, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, errors.New("invalid cursor")
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid cursor")
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, errors.New("invalid cursor")
	}
	return &PageCursor{Ts: ts, ID: parts[1]}, nil
}

// EncodeSeqCursor message 列表游標 (seq desc)
func EncodeSeqCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

// DecodeSeqCursor 解析 seq cursor, 空字串代表從最新開始
func DecodeSeqCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, errors.New("invalid cursor")
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, errors.New("invalid cursor")
	}
	return seq, nil
}
