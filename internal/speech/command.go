package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// baseWordsPerMinute is espeak-ng's speed at rate 1.0.
const baseWordsPerMinute = 175

// CommandEngine speaks through an espeak-ng compatible binary.
type CommandEngine struct {
	binary string
	lookup func(string) (string, error)
	run    func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewCommandEngine(binary string) *CommandEngine {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &CommandEngine{
		binary: binary,
		lookup: exec.LookPath,
		run:    exec.CommandContext,
	}
}

func (e *CommandEngine) Available() bool {
	_, err := e.lookup(e.binary)
	return err == nil
}

func (e *CommandEngine) Voices(ctx context.Context) ([]Voice, error) {
	out, err := e.run(ctx, e.binary, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("%s --voices: %w", e.binary, err)
	}
	return parseVoiceTable(out), nil
}

func (e *CommandEngine) Start(ctx context.Context, u Utterance) (Playback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	voice := strings.ToLower(u.Locale)
	if u.Voice != nil && u.Voice.ID != "" {
		voice = u.Voice.ID
	}

	pctx, cancel := context.WithCancel(context.Background())
	cmd := e.run(pctx, e.binary, commandArgs(voice, u.Rate, u.Text)...)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", e.binary, err)
	}

	pb := &commandPlayback{cancel: cancel, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		cancel()
		close(pb.done)
	}()
	return pb, nil
}

func commandArgs(voice string, rate float64, text string) []string {
	wpm := int(baseWordsPerMinute * ClampRate(rate))
	return []string{"-v", voice, "-s", strconv.Itoa(wpm), "--", text}
}

// parseVoiceTable reads the `--voices` listing:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-gb          --/M      English_(Great_Britain) gmw/en
func parseVoiceTable(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{
			ID:     fields[1],
			Name:   strings.ReplaceAll(fields[3], "_", " "),
			Locale: fields[1],
		})
	}
	return voices
}

type commandPlayback struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *commandPlayback) Cancel() {
	p.once.Do(p.cancel)
}

func (p *commandPlayback) Done() <-chan struct{} {
	return p.done
}
