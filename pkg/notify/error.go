package notify

import "errors"

var errKafkaNotConfigured = errors.New("kafka brokers or topic not configured")
