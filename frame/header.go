package frame

import (
	"encoding/binary"
)

// 帧头编码（大端）：
// 短头（2B）：
//   bit15: Compressed
//   bit14: 保留，必须为 0
//   bit13: Ext=0
//   bit12..0: Len13 (0..8191)
// 长头（4B）：
//   bit31: Compressed
//   bit30: 保留，必须为 0
//   bit29: Ext=1
//   bit28..0: Len29 (0..(1<<29)-1)
// Len 为帧体（压缩后）长度。

const (
	shortHeadMaxLen = (1 << 13) - 1 // 8191
	longHeadMaxLen  = (1 << 29) - 1

	// MaxHeaderLen 是帧头的最大字节数
	MaxHeaderLen = 4
)

// appendHeader 把帧头追加到 dst。
func appendHeader(dst []byte, length int, compressed bool) ([]byte, error) {
	if length < 0 || length > longHeadMaxLen {
		return dst, ErrFrameTooLarge
	}
	if length <= shortHeadMaxLen {
		var v uint16
		if compressed {
			v |= 1 << 15
		}
		v |= uint16(length) & 0x1FFF
		return binary.BigEndian.AppendUint16(dst, v), nil
	}
	var v uint32 = 1 << 29 // Ext=1
	if compressed {
		v |= 1 << 31
	}
	v |= uint32(length) & 0x1FFFFFFF
	return binary.BigEndian.AppendUint32(dst, v), nil
}

// decodeHeader 解码帧头。b 不足以判断时 used==0 且 err==nil。
func decodeHeader(b []byte) (used, length int, compressed bool, err error) {
	if len(b) < 2 {
		return 0, 0, false, nil
	}
	v16 := binary.BigEndian.Uint16(b[:2])
	if v16&(1<<14) != 0 {
		return 0, 0, false, ErrReservedBits
	}
	compressed = v16&(1<<15) != 0
	if v16&(1<<13) == 0 {
		return 2, int(v16 & 0x1FFF), compressed, nil
	}
	if len(b) < 4 {
		return 0, 0, false, nil
	}
	v32 := binary.BigEndian.Uint32(b[:4])
	return 4, int(v32 & 0x1FFFFFFF), compressed, nil
}
