package domain

const (
	RequesterIdCtxKey   = "vt-requesterId"
	RequesterUserCtxKey = "vt-requesterUser"
)
