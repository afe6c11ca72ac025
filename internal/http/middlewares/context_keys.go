package middlewares

const (
	CtxRequestID = "request_id"

	ctxUserIDKey   = "auth.userID"
	ctxUsernameKey = "auth.username"
	ctxRoleKey     = "auth.role"
	ctxNameKey     = "auth.name"
	ctxEmailKey    = "auth.email"
	ctxPhoneKey    = "auth.phone"
)
