package gen

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrScript is returned for malformed transaction scripts.
var ErrScript = errors.New("invalid transaction script")

// ParseScript reads frames from a compact description. Frames are separated
// by semicolons. Each frame is a hex address followed by R or W and an
// optional colon and comma separated list of hex data bytes. A trailing ! on
// the direction or a data byte marks it not acknowledged.
//
//	50W:00,10;50R:aa,bb!
func ParseScript(script string) ([]Frame, error) {
	var frames []Frame

	for _, field := range strings.Split(script, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		head, data, _ := strings.Cut(field, ":")

		f, err := parseHead(head)
		if err != nil {
			return nil, err
		}

		if data != "" {
			for _, d := range strings.Split(data, ",") {
				d = strings.TrimSpace(d)
				ack := !strings.HasSuffix(d, "!")
				d = strings.TrimSuffix(d, "!")

				v, err := strconv.ParseUint(d, 16, 8)
				if err != nil {
					return nil, errors.Wrapf(ErrScript, "data byte %q", d)
				}
				f.Data = append(f.Data, byte(v))
				f.Acks = append(f.Acks, ack)
			}
		}

		frames = append(frames, f)
	}

	if len(frames) == 0 {
		return nil, errors.Wrap(ErrScript, "no frames")
	}

	return frames, nil
}

func parseHead(head string) (f Frame, err error) {
	f.AddressAck = !strings.HasSuffix(head, "!")
	head = strings.TrimSuffix(head, "!")

	if len(head) < 2 {
		return f, errors.Wrapf(ErrScript, "frame header %q", head)
	}

	switch strings.ToUpper(head[len(head)-1:]) {
	case "R":
		f.Read = true
	case "W":
	default:
		return f, errors.Wrapf(ErrScript, "direction of %q must be R or W", head)
	}

	addr, err := strconv.ParseUint(head[:len(head)-1], 16, 7)
	if err != nil {
		return f, errors.Wrapf(ErrScript, "address %q", head[:len(head)-1])
	}
	f.Address = uint8(addr)

	return f, nil
}
