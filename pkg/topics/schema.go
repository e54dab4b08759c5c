package topics

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultRoot is the default topic root.
const DefaultRoot = "te"

// ErrForeignTopic is returned for topics outside the schema root.
var ErrForeignTopic = errors.New("topic outside schema root")

// Schema maps entities and channels to topics under a root prefix.
type Schema struct {
	Root string
}

// NewSchema returns a schema rooted at root, or DefaultRoot when empty.
func NewSchema(root string) Schema {
	if root == "" {
		root = DefaultRoot
	}
	return Schema{Root: root}
}

// Topic returns <root>/<entity>/<channel>.
func (s Schema) Topic(entity EntityTopicID, ch Channel) string {
	return s.Root + "/" + entity.String() + "/" + ch.String()
}

// EntityTopic returns <root>/<entity>.
func (s Schema) EntityTopic(entity EntityTopicID) string {
	return s.Root + "/" + entity.String()
}

// CommandFilter returns the subscription filter for every command of op
// addressed to entity.
func (s Schema) CommandFilter(entity EntityTopicID, op OperationKind) string {
	return s.Topic(entity, CommandMetadataChannel(op)) + "/+"
}

// EntityChannelOf splits a topic into its entity id and channel.
func (s Schema) EntityChannelOf(topic string) (EntityTopicID, Channel, error) {
	prefix := s.Root + "/"
	if !strings.HasPrefix(topic, prefix) {
		return EntityTopicID{}, Channel{}, fmt.Errorf("%w: %q", ErrForeignTopic, topic)
	}
	parts := strings.SplitN(strings.TrimPrefix(topic, prefix), "/", entitySegments+1)
	if len(parts) != entitySegments+1 {
		return EntityTopicID{}, Channel{}, fmt.Errorf("%w: %q", ErrInvalidEntityTopicID, topic)
	}
	entity, err := ParseEntityTopicID(strings.Join(parts[:entitySegments], "/"))
	if err != nil {
		return EntityTopicID{}, Channel{}, err
	}
	ch, err := ParseChannel(parts[entitySegments])
	if err != nil {
		return EntityTopicID{}, Channel{}, err
	}
	return entity, ch, nil
}
