package usecase

import (
	"context"
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain"
)

// ChunkReply splits reply into the chunks a stream emits: every character of a
// word is one chunk and a single " " chunk separates consecutive words.
// Concatenating the chunks reproduces reply exactly.
func ChunkReply(reply string) iter.Seq[string] {
	return func(yield func(string) bool) {
		words := strings.Split(reply, " ")
		for i, word := range words {
			for _, r := range word {
				if !yield(string(r)) {
					return
				}
			}
			if i < len(words)-1 {
				if !yield(" ") {
					return
				}
			}
		}
	}
}

// Stream runs one exchange and emits the reply incrementally.
//
// Failures before the reply is obtained produce a single error event and
// commit nothing. Once the reply exists it is committed after the last chunk
// and before the done event; if the consumer stops early or ctx is cancelled,
// the reply is still committed and no further events are produced.
func (s *ChatService) Stream(ctx context.Context, userID string, in ChatInput) iter.Seq[domain.StreamEvent] {
	return func(yield func(domain.StreamEvent) bool) {
		snap, history, err := s.prepare(userID, in)
		if err != nil {
			yield(domain.ErrorEvent(err))
			return
		}

		reply, err := snap.Provider.Chat(ctx, in.Message, history)
		if err != nil {
			s.logger.Error("Provider call failed during stream",
				zap.String("userID", userID),
				zap.String("sessionID", snap.Key.SessionID),
				zap.Error(err))
			yield(domain.ErrorEvent(err))
			return
		}

		committed := false
		defer func() {
			if !committed {
				s.logger.Debug("Stream abandoned, committing reply",
					zap.String("userID", userID),
					zap.String("sessionID", snap.Key.SessionID))
				s.commit(ctx, snap, in.Message, reply)
			}
		}()

		for chunk := range ChunkReply(reply) {
			if ctx.Err() != nil {
				return
			}
			if !yield(domain.ChunkEvent(chunk)) {
				return
			}
		}

		s.commit(ctx, snap, in.Message, reply)
		committed = true
		yield(domain.DoneEvent())
	}
}
