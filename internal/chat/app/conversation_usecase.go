package app

import (
	"context"
	"time"

	"messaging_service/internal/chat/domain"
	"messaging_service/internal/chat/repository"
	"messaging_service/pkg"
	errprocess "messaging_service/pkg/err"

	"github.com/google/uuid"
)

const (
	// DefaultPageSize 未帶 limit 時的預設值
	DefaultPageSize = 20
	// MaxPageSize limit 上限
	MaxPageSize = 100
)

// ConversationUseCase - 負責 conversation 的建立/查詢/狀態轉移
type ConversationUseCase struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	fanout   *FanoutPublisher
}

// NewConversationUseCase init conversation use case
func NewConversationUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	fanout *FanoutPublisher,
) *ConversationUseCase {
	return &ConversationUseCase{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		fanout:   fanout,
	}
}

// CreateConversation create conversation
// direct 時若同一對 participants 已有 conversation, 回傳既有的 (冪等, 防重複 thread)
func (uc *ConversationUseCase) CreateConversation(
	ctx context.Context,
	creatorID string,
	participantIDs []string,
	kind domain.ConversationKind,
) (*domain.Conversation, error) {

	// 1. 整理 participants: 去重, 建立者一定在內
	members := pkg.Dedup(append([]string{creatorID}, participantIDs...))
	if len(members) < 2 {
		return nil, errprocess.New(errprocess.KindInvalidParticipants, "conversation needs at least 2 distinct participants")
	}

	switch kind {
	case domain.ConversationKindDirect:
		if len(members) != 2 {
			return nil, errprocess.New(errprocess.KindInvalidParticipants, "direct conversation must have exactly 2 participants")
		}
		// 2. 檢查是否已存在同一對的 direct conversation
		exist, err := uc.convRepo.FindDirect(ctx, members[0], members[1])
		if err != nil {
			return nil, err
		}
		if exist != nil {
			return exist, nil
		}
	case domain.ConversationKindGroup:
		// group 不查重, 同一群人可以開多個群
	default:
		return nil, errprocess.New(errprocess.KindInvalidParticipants, "unknown conversation kind")
	}

	now := time.Now().Unix()
	conv := &domain.Conversation{
		ID:           uuid.New().String(),
		Kind:         kind,
		Participants: members,
		Status:       domain.ConversationActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if kind == domain.ConversationKindDirect {
		conv.DirectKey = domain.DirectPairKey(members[0], members[1])
	}

	if err := uc.convRepo.CreateConversation(ctx, conv); err != nil {
		// 輸掉 direct 建立的 race (unique index 擋下), 回傳贏家那筆
		if kind == domain.ConversationKindDirect && errprocess.Is(err, errprocess.KindConflict) {
			exist, ferr := uc.convRepo.FindDirect(ctx, members[0], members[1])
			if ferr == nil && exist != nil {
				return exist, nil
			}
		}
		return nil, err
	}
	return conv, nil
}

// GetConversation get conversation, requester 必須是 participant
func (uc *ConversationUseCase) GetConversation(ctx context.Context, convID, requesterID string) (*domain.Conversation, error) {
	conv, err := uc.convRepo.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errprocess.New(errprocess.KindNotFound, "conversation not found")
	}
	if !conv.HasParticipant(requesterID) {
		return nil, errprocess.New(errprocess.KindForbidden, "not a participant")
	}
	return conv, nil
}

// ListConversations updated_at desc 分頁列出 user 參與的 conversations
// 回傳 next cursor, 空字串代表沒有下一頁
func (uc *ConversationUseCase) ListConversations(ctx context.Context, userID, cursor string, limit int) ([]domain.Conversation, string, error) {
	pc, err := repository.DecodePageCursor(cursor)
	if err != nil {
		return nil, "", errprocess.New(errprocess.KindInvalidBody, err.Error())
	}
	lim := clampLimit(limit)

	convs, err := uc.convRepo.ListByParticipant(ctx, userID, pc, int64(lim))
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(convs) == lim {
		last := convs[len(convs)-1]
		next = repository.EncodePageCursor(last.UpdatedAt, last.ID)
	}
	return convs, next, nil
}

// UpdateStatus conversation 狀態轉移
// 僅允許 active→archived, active→closed, archived→active
func (uc *ConversationUseCase) UpdateStatus(ctx context.Context, convID, requesterID string, to domain.ConversationStatus) (*domain.Conversation, error) {
	conv, err := uc.GetConversation(ctx, convID, requesterID)
	if err != nil {
		return nil, err
	}

	if !conv.CanTransitionTo(to) {
		return nil, errprocess.New(errprocess.KindInvalidStateTransition,
			"transition "+string(conv.Status)+" -> "+string(to)+" not allowed")
	}

	now := time.Now().Unix()
	// 帶上讀到的 from 條件, 輸掉 race 回 conflict 讓 caller 重讀
	matched, err := uc.convRepo.UpdateStatus(ctx, convID, conv.Status, to, now)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errprocess.New(errprocess.KindConflict, "conversation status changed concurrently")
	}

	// closed 即為刪除, 訊息跟著整批 tombstone
	if to == domain.ConversationClosed {
		if err := uc.msgRepo.SoftDeleteByConversation(ctx, convID, now); err != nil {
			return nil, err
		}
	}

	conv.Status = to
	conv.UpdatedAt = now
	uc.fanout.ConversationUpdated(conv)
	return conv, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
