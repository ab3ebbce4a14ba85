package domain

type CtxKey string

const (
	KeySession   CtxKey = "Session"
	KeyUserID    CtxKey = "UserID"
	KeyRequestID CtxKey = "RequestID"
)
