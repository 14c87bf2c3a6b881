package complete

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/tidwall/gjson"

	"github.com/Paranoid-AF/fscli/esl"
)

// channelCacheTTL keeps repeated Tab presses from re-querying the server.
const channelCacheTTL = 2 * time.Second

const channelsKey = "channels"

// Channel is one row of "show channels as json".
type Channel struct {
	UUID         string
	Created      string
	CreatedEpoch int64
	Name         string
	State        string
	CIDName      string
	CIDNum       string
}

// Row formats the channel as a completion row:
// "<uuid> <created> <name> [<cid_num> cid_name] (<state>)". The caller ID
// part is left out when both fields are empty.
func (c Channel) Row() string {
	if c.CIDNum == "" && c.CIDName == "" {
		return fmt.Sprintf("%s %s %s (%s)", c.UUID, c.Created, c.Name, c.State)
	}
	cid := strings.TrimSpace(fmt.Sprintf("<%s> %s", c.CIDNum, c.CIDName))
	return fmt.Sprintf("%s %s %s %s (%s)", c.UUID, c.Created, c.Name, cid, c.State)
}

// ChannelProvider lists live channels for uuid_ completion, declining when
// there are more than Max of them.
type ChannelProvider struct {
	Max   int
	cache *ttlcache.Cache[string, []string]
}

// NewChannelProvider creates a provider with the given ceiling.
func NewChannelProvider(max int) *ChannelProvider {
	c := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](channelCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	go c.Start()
	return &ChannelProvider{Max: max, cache: c}
}

// Close stops the cache expiration loop.
func (p *ChannelProvider) Close() {
	p.cache.Stop()
}

// Invalidate forgets the cached listing, e.g. after a reconnect.
func (p *ChannelProvider) Invalidate() {
	p.cache.DeleteAll()
}

// Completions returns channel rows, newest first. ok is false when the
// channel count exceeds the ceiling and the caller should fall back.
func (p *ChannelProvider) Completions(ctx context.Context, s esl.Sender) ([]string, bool, error) {
	if item := p.cache.Get(channelsKey); item != nil {
		return item.Value(), true, nil
	}

	count, err := p.count(ctx, s)
	if err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, true, nil
	}
	if count > p.Max {
		slog.Debug("too many channels for uuid completion", "count", count, "limit", p.Max)
		return nil, false, nil
	}

	channels, err := p.list(ctx, s)
	if err != nil {
		return nil, false, err
	}
	rows := make([]string, len(channels))
	for i, ch := range channels {
		rows[i] = ch.Row()
	}
	p.cache.Set(channelsKey, rows, ttlcache.DefaultTTL)
	return rows, true, nil
}

func (p *ChannelProvider) count(ctx context.Context, s esl.Sender) (int, error) {
	resp, err := esl.API(ctx, s, "show channels count as json")
	if err != nil {
		return 0, err
	}
	if !resp.IsSuccess() || !gjson.Valid(resp.Body) {
		return 0, nil
	}
	return int(gjson.Get(resp.Body, "row_count").Int()), nil
}

func (p *ChannelProvider) list(ctx context.Context, s esl.Sender) ([]Channel, error) {
	resp, err := esl.API(ctx, s, "show channels as json")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() || !gjson.Valid(resp.Body) {
		return nil, nil
	}
	return ParseChannels(resp.Body), nil
}

// ParseChannels decodes a "show channels as json" body, newest first.
func ParseChannels(body string) []Channel {
	var channels []Channel
	gjson.Get(body, "rows").ForEach(func(_, row gjson.Result) bool {
		channels = append(channels, Channel{
			UUID:         row.Get("uuid").String(),
			Created:      row.Get("created").String(),
			CreatedEpoch: row.Get("created_epoch").Int(),
			Name:         row.Get("name").String(),
			State:        row.Get("state").String(),
			CIDName:      row.Get("cid_name").String(),
			CIDNum:       row.Get("cid_num").String(),
		})
		return true
	})
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].CreatedEpoch > channels[j].CreatedEpoch
	})
	return channels
}
