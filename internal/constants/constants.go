package constants

// Advisory lock ids shared by every postfire instance.
const (
	MigrationLock = iota + 7301
	CleanupLock
)

var Locks = []int{
	MigrationLock,
	CleanupLock,
}

const (
	EventPostPublished      = "post.published"
	EventPostFailed         = "post.failed"
	EventPostRetryScheduled = "post.retry_scheduled"
)
