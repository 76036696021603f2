package repository

import (
	"errors"
	"sort"
	"time"

	"mitcstore/internal/domain/entity"
	"mitcstore/internal/domain/repository"
)

func isRecordNotFound(err error) bool {
	return errors.Is(err, repository.ErrRecordNotFound)
}

// Decoders for dynamic documents. Missing or mistyped fields fall back to the zero value.

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func intField(data map[string]interface{}, key string) int {
	return toInt(data[key])
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func boolField(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}

func timeField(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func mapField(data map[string]interface{}, key string) map[string]interface{} {
	if v, ok := data[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func sliceField(data map[string]interface{}, key string) []interface{} {
	switch v := data[key].(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

func stringSliceField(data map[string]interface{}, key string) []string {
	raw := sliceField(data, key)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func decodeSession(rec repository.Record) *entity.Session {
	session := &entity.Session{
		ID:           rec.ID,
		Type:         stringField(rec.Data, "type"),
		Status:       entity.SessionStatus(stringField(rec.Data, "status")),
		UserName:     stringField(rec.Data, "userName"),
		UserEmail:    stringField(rec.Data, "userEmail"),
		LastMessage:  stringField(rec.Data, "lastMessage"),
		LastActiveAt: timeField(rec.Data, "lastActiveAt"),
		CreatedAt:    timeField(rec.Data, "createdAt"),
		UnreadCounts: make(map[entity.ParticipantID]int),
	}
	if session.Status == "" {
		session.Status = entity.SessionOpen
	}

	for _, p := range stringSliceField(rec.Data, "participants") {
		session.Participants = append(session.Participants, entity.ParticipantID(p))
	}
	for p, count := range mapField(rec.Data, "unreadCounts") {
		n := toInt(count)
		if n < 0 {
			n = 0
		}
		session.UnreadCounts[entity.ParticipantID(p)] = n
	}
	return session
}

func decodeMessage(sessionID string, rec repository.Record) *entity.Message {
	return &entity.Message{
		ID:        rec.ID,
		SessionID: sessionID,
		SenderID:  entity.ParticipantID(stringField(rec.Data, "senderId")),
		Body:      stringField(rec.Data, "message"),
		CreatedAt: timeField(rec.Data, "createdAt"),
		Read:      boolField(rec.Data, "read"),
	}
}

func decodeOrder(rec repository.Record) *entity.Order {
	order := &entity.Order{
		ID:             rec.ID,
		UserID:         stringField(rec.Data, "userId"),
		UserName:       stringField(rec.Data, "userName"),
		UserEmail:      stringField(rec.Data, "userEmail"),
		ProductType:    stringField(rec.Data, "productType"),
		Quantity:       intField(rec.Data, "quantity"),
		Budget:         stringField(rec.Data, "budget"),
		Purpose:        stringField(rec.Data, "purpose"),
		Specifications: stringField(rec.Data, "specifications"),
		Deadline:       stringField(rec.Data, "deadline"),
		Status:         entity.OrderStatus(stringField(rec.Data, "status")),
		Paid:           boolField(rec.Data, "paid"),
		CreatedAt:      timeField(rec.Data, "createdAt"),
		UpdatedAt:      timeField(rec.Data, "updatedAt"),
	}
	if order.Status == "" {
		order.Status = entity.OrderPending
	}

	for _, raw := range sliceField(rec.Data, "logs") {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		order.Logs = append(order.Logs, entity.OrderLog{
			Status:    entity.OrderStatus(stringField(entry, "status")),
			Timestamp: timeField(entry, "timestamp"),
			Note:      stringField(entry, "note"),
		})
	}
	return order
}

func decodeUser(rec repository.Record) *entity.User {
	user := &entity.User{
		ID:        rec.ID,
		Name:      stringField(rec.Data, "name"),
		Email:     stringField(rec.Data, "email"),
		Role:      stringField(rec.Data, "role"),
		CreatedAt: timeField(rec.Data, "createdAt"),
	}
	if user.Role == "" {
		user.Role = entity.RoleUser
	}
	return user
}

func sortSessionsByActivity(sessions []*entity.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
	})
}
