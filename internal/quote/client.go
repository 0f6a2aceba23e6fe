package quote

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
)

// Client fetches quotes from the legacy quote server. The protocol is
// one round trip per connection: send "SYMBOL,userid\n", read back
// "price,symbol,userid,timestamp_ms,cryptokey\n".
type Client struct {
	addr   string
	dialer net.Dialer
}

// NewClient creates a quote server client for addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		addr:   addr,
		dialer: net.Dialer{Timeout: 5 * time.Second},
	}
}

func (c *Client) GetQuote(ctx context.Context, userID, symbol string) (Quote, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return Quote{}, fmt.Errorf("dial quote server: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s,%s\n", symbol, userID); err != nil {
		return Quote{}, fmt.Errorf("send quote request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return Quote{}, fmt.Errorf("read quote response: %w", err)
	}
	return parseResponse(strings.TrimSpace(line))
}

// parseResponse parses "price,symbol,userid,timestamp_ms,cryptokey".
func parseResponse(line string) (Quote, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return Quote{}, fmt.Errorf("malformed quote response %q", line)
	}
	price, err := domain.ParseCents(parts[0])
	if err != nil {
		return Quote{}, fmt.Errorf("malformed quote price %q: %w", parts[0], err)
	}
	tsMillis, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("malformed quote timestamp %q", parts[3])
	}
	return Quote{
		Price:     price,
		Symbol:    parts[1],
		UserID:    parts[2],
		Timestamp: time.UnixMilli(tsMillis),
		CryptoKey: parts[4],
	}, nil
}
