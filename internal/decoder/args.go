package decoder

import (
	"strconv"
	"time"
)

const protocolWhitelist = "file,http,https,tcp,tls,crypto,httpproxy"

// argSpec collects what varies between ffmpeg invocations.
type argSpec struct {
	input             string
	remote            bool
	manifest          bool
	stdin             bool
	seconds           float64
	sampleRate        int
	reconnectDelayMax int
	readTimeout       time.Duration
	userAgent         string
	accept            string
}

// ffmpegArgs builds the argument list for a decode to s16le mono on stdout.
func ffmpegArgs(spec argSpec) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if !spec.stdin {
		args = append(args, "-nostdin")
	}
	if spec.remote {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_delay_max", strconv.Itoa(spec.reconnectDelayMax),
		)
		if spec.readTimeout > 0 {
			args = append(args, "-rw_timeout", strconv.FormatInt(spec.readTimeout.Microseconds(), 10))
		}
		if spec.userAgent != "" {
			args = append(args, "-user_agent", spec.userAgent)
		}
		if spec.accept != "" {
			args = append(args, "-headers", "Accept: "+spec.accept+"\r\n")
		}
		args = append(args, "-protocol_whitelist", protocolWhitelist)
		if spec.manifest {
			args = append(args, "-allowed_extensions", "ALL")
		}
	}
	args = append(args, "-ss", "0")
	if spec.seconds > 0 {
		args = append(args, "-t", strconv.FormatFloat(spec.seconds, 'f', -1, 64))
	}
	args = append(args,
		"-i", spec.input,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(spec.sampleRate),
		"-f", "s16le",
		"pipe:1",
	)
	return args
}
