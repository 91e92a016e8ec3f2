// Package eventbus 事件总线常量定义
package eventbus

// Redis Key 前缀
const (
	// KeyVerificationEvents 用户审核事件流
	// 格式：craftbid:verification_events:{user_id}
	KeyVerificationEvents = "craftbid:verification_events:"
)

// Stream 配置常量
const (
	// MaxStreamLength 单个事件流保留的最大长度（近似裁剪）
	MaxStreamLength = 100

	// SubscriberBuffer 订阅通道缓冲大小
	SubscriberBuffer = 16
)
