package domain

// Channel separates the primary media negotiation from the screen-share one.
// Both use the same offer/answer/candidate flow over disjoint keys.
type Channel string

const (
	ChannelMedia  Channel = "media"
	ChannelScreen Channel = "screen"
)

func (c Channel) Valid() bool {
	return c == ChannelMedia || c == ChannelScreen
}
