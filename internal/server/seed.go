package server

import (
	"log/slog"
	"time"
)

// seed inserts the default groups on an empty database so a fresh install
// has somewhere to talk.
func (s *Store) seed() error {
	var count int64
	if err := s.db.Model(&GroupRecord{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	groups := []GroupRecord{
		{
			ID:              "gossip-central",
			Name:            "🗣️ Gossip Central",
			Description:     "Share the latest campus gossip and rumors anonymously",
			MemberCount:     247,
			LastMessage:     "Did you hear about what happened in the library yesterday?",
			LastMessageTime: now - 30*time.Minute.Milliseconds(),
		},
		{
			ID:              "confessions",
			Name:            "💭 Confessions",
			Description:     "Share your deepest secrets and confessions safely",
			MemberCount:     189,
			LastMessage:     "I actually enjoy the smell of permanent markers...",
			LastMessageTime: now - 2*time.Hour.Milliseconds(),
		},
		{
			ID:              "cgpa-flex",
			Name:            "📊 CGPA Flex",
			Description:     "Humble bragging about grades (anonymously of course)",
			MemberCount:     156,
			LastMessage:     "Just got my results back and... 4.0 again 😎",
			LastMessageTime: now - 4*time.Hour.Milliseconds(),
		},
		{
			ID:              "jokes-memes",
			Name:            "😂 Jokes & Memes",
			Description:     "Daily dose of humor and fresh memes",
			MemberCount:     312,
			LastMessage:     "Why did the developer go broke? Because he used up all his cache!",
			LastMessageTime: now - 45*time.Minute.Milliseconds(),
		},
		{
			ID:              "guess-who",
			Name:            "🕵️ Guess Who Game",
			Description:     "Drop hints about yourself and let others guess who you are",
			MemberCount:     98,
			LastMessage:     "I wear the same hoodie 3 days in a row, always sit in the back row...",
			LastMessageTime: now - time.Hour.Milliseconds(),
		},
		{
			ID:              "late-night-thoughts",
			Name:            "🌙 Late Night Thoughts",
			Description:     "For those 3 AM philosophical discussions",
			MemberCount:     203,
			LastMessage:     "Is cereal soup? Discuss.",
			LastMessageTime: now - 6*time.Hour.Milliseconds(),
		},
	}

	for _, group := range groups {
		if err := s.db.Create(&group).Error; err != nil {
			slog.Warn("failed to seed group", "group", group.ID, "error", err)
		}
	}
	slog.Info("seeded default groups", "count", len(groups))
	return nil
}
