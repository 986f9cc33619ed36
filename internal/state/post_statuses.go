package state

// PostStatus is the user-visible status of a scheduled post.
type PostStatus string

const (
	PostPending    PostStatus = "pending"
	PostProcessing PostStatus = "processing"
	PostPublished  PostStatus = "published"
	PostFailed     PostStatus = "failed"
	PostCancelled  PostStatus = "cancelled"
)

func (s PostStatus) String() string {
	return string(s)
}

func (s PostStatus) IsTerminal() bool {
	return s == PostPublished || s == PostFailed || s == PostCancelled
}

var AllPostStatuses = []PostStatus{
	PostPending,
	PostProcessing,
	PostPublished,
	PostFailed,
	PostCancelled,
}

type PostTransition struct {
	From PostStatus
	To   PostStatus
}

// ValidPostTransitions is the scheduled post state machine. processing -> pending is a requeue
// at backoff time.
var ValidPostTransitions = []PostTransition{
	{From: PostPending, To: PostProcessing},
	{From: PostPending, To: PostCancelled},
	{From: PostProcessing, To: PostPublished},
	{From: PostProcessing, To: PostPending},
	{From: PostProcessing, To: PostFailed},
}

func IsValidPostTransition(from, to PostStatus) bool {
	for _, t := range ValidPostTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
