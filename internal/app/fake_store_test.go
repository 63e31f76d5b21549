package app

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"conveyo/api/internal/config"
	"conveyo/api/internal/export"
	"conveyo/api/internal/session"
	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

// fakeStore is an in-memory dataStore mirroring the guarded-update semantics
// of the Postgres implementation.
type fakeStore struct {
	users         map[int64]store.User
	properties    map[int64]store.Property
	stages        map[int64][]store.Stage
	messages      map[int64]store.Message
	notifications []store.Notification
	explanations  map[string]store.StageExplanation
	documents     map[int64]store.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[int64]store.User{},
		properties:   map[int64]store.Property{},
		stages:       map[int64][]store.Stage{},
		messages:     map[int64]store.Message{},
		explanations: map[string]store.StageExplanation{},
		documents:    map[int64]store.Document{},
	}
}

func (f *fakeStore) addUser(role, firstName string) store.User {
	user := store.User{
		ID:        util.NewID(),
		Email:     firstName + "@example.com",
		FirstName: firstName,
		Role:      role,
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) GetUserByID(_ context.Context, userID int64) (store.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) InsertPropertyWithStages(_ context.Context, property store.Property, stages []store.Stage) (store.Property, error) {
	property.CreatedAt = time.Now()
	property.UpdatedAt = property.CreatedAt
	f.properties[property.ID] = property
	f.stages[property.ID] = append([]store.Stage(nil), stages...)
	return property, nil
}

func (f *fakeStore) GetProperty(_ context.Context, propertyID int64) (store.Property, error) {
	property, ok := f.properties[propertyID]
	if !ok {
		return store.Property{}, sql.ErrNoRows
	}
	return property, nil
}

func (f *fakeStore) ListPropertiesForUser(_ context.Context, userID int64) ([]store.Property, error) {
	var items []store.Property
	for _, p := range f.properties {
		if len(relationsFor(p, userID)) > 0 {
			items = append(items, p)
		}
	}
	return items, nil
}

func (f *fakeStore) UpdateProperty(_ context.Context, property store.Property) (store.Property, error) {
	if _, ok := f.properties[property.ID]; !ok {
		return store.Property{}, sql.ErrNoRows
	}
	property.UpdatedAt = time.Now()
	f.properties[property.ID] = property
	return property, nil
}

func (f *fakeStore) DeletePropertyCascade(_ context.Context, propertyID int64) ([]string, error) {
	if _, ok := f.properties[propertyID]; !ok {
		return nil, sql.ErrNoRows
	}
	var keys []string
	for id, doc := range f.documents {
		if doc.PropertyID == propertyID {
			keys = append(keys, doc.ObjectKey)
			delete(f.documents, id)
		}
	}
	for id, m := range f.messages {
		if m.PropertyID == propertyID {
			delete(f.messages, id)
		}
	}
	delete(f.stages, propertyID)
	delete(f.properties, propertyID)
	return keys, nil
}

func (f *fakeStore) ApproveTimeline(_ context.Context, propertyID int64, buyerSide bool, notifs []store.Notification) (store.Property, error) {
	property, ok := f.properties[propertyID]
	if !ok {
		return store.Property{}, sql.ErrNoRows
	}
	if property.TimelineLocked {
		return store.Property{}, store.ErrTimelineLocked
	}
	if buyerSide && property.BuyerSolicitorApproved {
		return store.Property{}, store.ErrAlreadyApproved
	}
	if !buyerSide && property.SellerSolicitorApproved {
		return store.Property{}, store.ErrAlreadyApproved
	}
	if buyerSide {
		property.BuyerSolicitorApproved = true
	} else {
		property.SellerSolicitorApproved = true
	}
	property.TimelineLocked = property.BuyerSolicitorApproved && property.SellerSolicitorApproved
	f.properties[propertyID] = property
	f.notifications = append(f.notifications, notifs...)
	return property, nil
}

func (f *fakeStore) UnlockTimeline(_ context.Context, propertyID int64, notifs []store.Notification) (store.Property, error) {
	property, ok := f.properties[propertyID]
	if !ok {
		return store.Property{}, sql.ErrNoRows
	}
	property.TimelineLocked = false
	property.BuyerSolicitorApproved = false
	property.SellerSolicitorApproved = false
	f.properties[propertyID] = property
	f.notifications = append(f.notifications, notifs...)
	return property, nil
}

func (f *fakeStore) ListStages(_ context.Context, propertyID int64) ([]store.Stage, error) {
	items := append([]store.Stage(nil), f.stages[propertyID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })
	return items, nil
}

func (f *fakeStore) GetStage(_ context.Context, propertyID, stageID int64) (store.Stage, error) {
	for _, st := range f.stages[propertyID] {
		if st.ID == stageID {
			return st, nil
		}
	}
	return store.Stage{}, sql.ErrNoRows
}

func (f *fakeStore) InsertStageAt(_ context.Context, stage store.Stage, hasPosition bool) (store.Stage, error) {
	items := f.stages[stage.PropertyID]
	if hasPosition {
		if stage.SortOrder < 0 {
			stage.SortOrder = 0
		}
		if stage.SortOrder > len(items) {
			stage.SortOrder = len(items)
		}
		for i := range items {
			if items[i].SortOrder >= stage.SortOrder {
				items[i].SortOrder++
			}
		}
	} else {
		stage.SortOrder = len(items)
	}
	f.stages[stage.PropertyID] = append(items, stage)
	return stage, nil
}

func (f *fakeStore) UpdateStage(_ context.Context, stage store.Stage, advanceNext bool, notifs []store.Notification) (store.Stage, error) {
	items := f.stages[stage.PropertyID]
	found := false
	for i := range items {
		if items[i].ID == stage.ID {
			stage.SortOrder = items[i].SortOrder
			items[i] = stage
			found = true
			break
		}
	}
	if !found {
		return store.Stage{}, sql.ErrNoRows
	}
	if advanceNext {
		nextIdx := -1
		for i := range items {
			if items[i].Status != "pending" || items[i].ID <= stage.ID {
				continue
			}
			if nextIdx == -1 || items[i].ID < items[nextIdx].ID {
				nextIdx = i
			}
		}
		if nextIdx >= 0 {
			items[nextIdx].Status = "in-progress"
			if items[nextIdx].StartDate == nil {
				now := time.Now()
				items[nextIdx].StartDate = &now
			}
		}
	}
	f.stages[stage.PropertyID] = items
	f.notifications = append(f.notifications, notifs...)
	return stage, nil
}

func (f *fakeStore) CompleteStage(_ context.Context, propertyID, stageID int64, notifs []store.Notification) (store.Stage, error) {
	items := f.stages[propertyID]
	for i := range items {
		if items[i].ID == stageID {
			now := time.Now()
			items[i].Status = "completed"
			items[i].CompletedAt = &now
			f.notifications = append(f.notifications, notifs...)
			return items[i], nil
		}
	}
	return store.Stage{}, sql.ErrNoRows
}

func (f *fakeStore) DeleteStageRepack(_ context.Context, propertyID, stageID int64) (store.Stage, error) {
	items := f.stages[propertyID]
	idx := -1
	for i := range items {
		if items[i].ID == stageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return store.Stage{}, sql.ErrNoRows
	}
	deleted := items[idx]
	items = append(items[:idx], items[idx+1:]...)
	for i := range items {
		if items[i].SortOrder > deleted.SortOrder {
			items[i].SortOrder--
		}
	}
	f.stages[propertyID] = items
	return deleted, nil
}

func (f *fakeStore) ReorderStages(_ context.Context, propertyID int64, ids []int64) error {
	items := f.stages[propertyID]
	for position, id := range ids {
		found := false
		for i := range items {
			if items[i].ID == id {
				items[i].SortOrder = position
				found = true
				break
			}
		}
		if !found {
			return sql.ErrNoRows
		}
	}
	f.stages[propertyID] = items
	return nil
}

func (f *fakeStore) ResetStages(_ context.Context, propertyID int64, notifs []store.Notification) error {
	items := f.stages[propertyID]
	for i := range items {
		items[i].Status = "pending"
		items[i].StartDate = nil
		items[i].CompletedAt = nil
	}
	f.stages[propertyID] = items
	if property, ok := f.properties[propertyID]; ok {
		property.TimelineLocked = false
		property.BuyerSolicitorApproved = false
		property.SellerSolicitorApproved = false
		f.properties[propertyID] = property
	}
	f.notifications = append(f.notifications, notifs...)
	return nil
}

func (f *fakeStore) InsertMessage(_ context.Context, message store.Message) (store.Message, error) {
	message.CreatedAt = time.Now()
	message.Status = message.ApprovalStatus
	f.messages[message.ID] = message
	return message, nil
}

func (f *fakeStore) GetMessage(_ context.Context, messageID int64) (store.Message, error) {
	message, ok := f.messages[messageID]
	if !ok {
		return store.Message{}, sql.ErrNoRows
	}
	return message, nil
}

func (f *fakeStore) ListMessages(_ context.Context, propertyID int64) ([]store.Message, error) {
	var items []store.Message
	for _, m := range f.messages {
		if m.PropertyID == propertyID {
			items = append(items, m)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) ListPendingMessages(_ context.Context, propertyID int64) ([]store.Message, error) {
	var items []store.Message
	for _, m := range f.messages {
		if m.PropertyID == propertyID && m.ApprovalStatus == "pending" {
			items = append(items, m)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) ResolveMessage(_ context.Context, messageID int64, status string, approvedContent *string, approvedBy int64, notifs []store.Notification) (bool, error) {
	message, ok := f.messages[messageID]
	if !ok || message.ApprovalStatus != "pending" {
		return false, nil
	}
	now := time.Now()
	message.ApprovalStatus = status
	message.Status = status
	message.ApprovedContent = approvedContent
	message.ApprovedBy = &approvedBy
	message.ApprovedAt = &now
	f.messages[messageID] = message
	f.notifications = append(f.notifications, notifs...)
	return true, nil
}

func (f *fakeStore) InsertNotification(_ context.Context, n store.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, userID int64, propertyID int64, unreadOnly bool) ([]store.Notification, error) {
	var items []store.Notification
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if propertyID != 0 && (n.PropertyID == nil || *n.PropertyID != propertyID) {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		items = append(items, n)
	}
	return items, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, notificationID, userID int64) (bool, error) {
	for i := range f.notifications {
		if f.notifications[i].ID == notificationID && f.notifications[i].UserID == userID {
			f.notifications[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkAllNotificationsRead(_ context.Context, userID int64) error {
	for i := range f.notifications {
		if f.notifications[i].UserID == userID {
			f.notifications[i].Read = true
		}
	}
	return nil
}

func (f *fakeStore) GetStageExplanation(_ context.Context, stage, role string) (store.StageExplanation, error) {
	item, ok := f.explanations[stage+"|"+role]
	if !ok {
		return store.StageExplanation{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) UpsertStageExplanation(_ context.Context, item store.StageExplanation) (store.StageExplanation, error) {
	f.explanations[item.Stage+"|"+item.Role] = item
	return item, nil
}

func (f *fakeStore) SeedStageExplanations(_ context.Context, items []store.StageExplanation) error {
	for _, item := range items {
		key := item.Stage + "|" + item.Role
		if _, ok := f.explanations[key]; !ok {
			f.explanations[key] = item
		}
	}
	return nil
}

func (f *fakeStore) InsertDocument(_ context.Context, document store.Document, notifs []store.Notification) (store.Document, error) {
	document.UploadedAt = time.Now()
	f.documents[document.ID] = document
	f.notifications = append(f.notifications, notifs...)
	return document, nil
}

func (f *fakeStore) GetDocument(_ context.Context, documentID int64) (store.Document, error) {
	document, ok := f.documents[documentID]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return document, nil
}

func (f *fakeStore) ListDocuments(_ context.Context, propertyID int64) ([]store.Document, error) {
	var items []store.Document
	for _, d := range f.documents {
		if d.PropertyID == propertyID {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) ReviewDocument(_ context.Context, documentID int64, status string, reviewedBy int64, notifs []store.Notification) (bool, error) {
	document, ok := f.documents[documentID]
	if !ok || document.ReviewStatus != "pending" {
		return false, nil
	}
	now := time.Now()
	document.ReviewStatus = status
	document.ReviewedBy = &reviewedBy
	document.ReviewedAt = &now
	f.documents[documentID] = document
	f.notifications = append(f.notifications, notifs...)
	return true, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// fakeSessions keeps refresh sessions in a map keyed by token hash.
type fakeSessions struct {
	entries map[string]session.Data
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{entries: map[string]session.Data{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, data session.Data, _ time.Time) error {
	f.entries[tokenHash] = data
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (session.Data, error) {
	data, ok := f.entries[tokenHash]
	if !ok {
		return session.Data{}, errors.New("refresh session not found")
	}
	return data, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.entries, tokenHash)
	return nil
}

// fakeModeration lets each test script the rewrite/check/explain outcomes.
type fakeModeration struct {
	rewrite func(string) (string, error)
	check   func(string) (bool, error)
	explain func(stage, role string) (string, error)
}

func (f *fakeModeration) Rewrite(_ context.Context, content string) (string, error) {
	if f.rewrite == nil {
		return content, nil
	}
	return f.rewrite(content)
}

func (f *fakeModeration) Check(_ context.Context, content string) (bool, error) {
	if f.check == nil {
		return false, nil
	}
	return f.check(content)
}

func (f *fakeModeration) Explain(_ context.Context, stage, role string) (string, error) {
	if f.explain == nil {
		return "About " + stage + " for " + role, nil
	}
	return f.explain(stage, role)
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		store:    fs,
		sessions: newFakeSessions(),
		exporter: export.NewService(),
	}
}

func sessionFor(user store.User) Session {
	return Session{
		UserID:   user.ID,
		UserName: displayName(user),
		Role:     user.Role,
	}
}

// seedConveyance creates a property with all five parties assigned and the
// preset timeline in place.
func seedConveyance(fs *fakeStore) (store.Property, map[string]store.User) {
	users := map[string]store.User{
		"buyer":            fs.addUser("buyer", "Beatrice"),
		"seller":           fs.addUser("seller", "Selina"),
		"buyer_solicitor":  fs.addUser("solicitor", "Bob"),
		"seller_solicitor": fs.addUser("solicitor", "Sarah"),
		"estate_agent":     fs.addUser("estate_agent", "Eamon"),
	}

	property := store.Property{
		ID:                util.NewID(),
		Address:           "1 High Street",
		Postcode:          "AB1 2CD",
		Price:             250000,
		Status:            "under_offer",
		BuyerID:           idRef(users["buyer"].ID),
		SellerID:          idRef(users["seller"].ID),
		BuyerSolicitorID:  idRef(users["buyer_solicitor"].ID),
		SellerSolicitorID: idRef(users["seller_solicitor"].ID),
		EstateAgentID:     idRef(users["estate_agent"].ID),
	}
	property, _ = fs.InsertPropertyWithStages(context.Background(), property, presetStageRows(property.ID))
	return property, users
}

func idRef(id int64) *int64 { return &id }
