package modules

import (
	"github.com/Luismorlan/postmux/ingest"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// deadLetter forwards the payload of msg to TOPIC_DEAD_LETTER, keeping its
// sequence number.
func deadLetter(bus message.Publisher, msg *message.Message, stage string, cause error) {
	dead := message.NewMessage(watermill.NewUUID(), msg.Payload)
	dead.Metadata.Set(ingest.METADATA_SEQ, msg.Metadata.Get(ingest.METADATA_SEQ))
	dead.Metadata.Set(ingest.METADATA_STAGE, stage)
	dead.Metadata.Set(ingest.METADATA_ERROR, cause.Error())
	if err := bus.Publish(ingest.TOPIC_DEAD_LETTER, dead); err != nil {
		Logger.Log.Errorln("fail to publish dead letter:", err)
	}
}
