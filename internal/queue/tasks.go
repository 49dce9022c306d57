package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskDeliverMessage = "sms.deliver"

type DeliverPayload struct {
	MessageID int64 `json:"message_id"`
}

func NewDeliverTask(payload DeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliverMessage, data), nil
}

func ParseDeliverPayload(task *asynq.Task) (DeliverPayload, error) {
	var payload DeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeliverPayload{}, err
	}
	if payload.MessageID <= 0 {
		return DeliverPayload{}, fmt.Errorf("invalid message_id %d", payload.MessageID)
	}
	return payload, nil
}

// taskID keeps one pending job per message.
func taskID(messageID int64) string {
	return fmt.Sprintf("sms:deliver:%d", messageID)
}
