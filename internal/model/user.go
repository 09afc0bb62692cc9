package model

import "time"

// User - пользователь бота, регистрируется по /start
type User struct {
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

const unknownUser = "неизвестный"

// DisplayName возвращает @username, а если его нет - имя
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return unknownUser
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	}
	return unknownUser
}
