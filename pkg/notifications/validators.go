package notifications

type ListNotificationsQuery struct {
	Unread bool `query:"unread"`
	Limit  int  `query:"limit" default:"50" validate:"min=1,max=200"`
	Offset int  `query:"offset" validate:"min=0"`
}

type CreateNotificationPayload struct {
	UserID  *string `json:"userId" mod:"trim" validate:"omitempty,min=1"`
	Title   string  `json:"title" mod:"trim" validate:"required,max=200"`
	Message string  `json:"message" mod:"trim" validate:"max=2000"`
	BookID  *string `json:"bookId" mod:"trim"`
}
