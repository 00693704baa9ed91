// Package codecproto implements the synchronous binary protocol spoken
// between a host process and an encoder co-process over a pair of pipes.
//
// A session starts with a handshake: the host writes a fixed-size Settings
// record and the co-process echoes it back with OutFramesPerPacket filled
// in. After that every message in either direction is a FrameHeader
// followed by exactly Size bytes of payload. Requests and responses are
// strictly one-in-one-out; there is no pipelining and no resynchronization,
// so any short read or write leaves the channel unusable.
//
// All records are fixed-layout and native-endian, matching the C structs
// of the native co-process:
//
//	Settings    (32 bytes): struct_size, proc_version, bitrate, channels,
//	                        samplerate_in, samplerate_out, flags,
//	                        out_frames_per_packet (all uint32)
//	FrameHeader (24 bytes): size uint32, frames uint32, pts int64,
//	                        flags uint32, 4 bytes of tail padding
//
// Engine is the host side, Serve is the co-process side.
package codecproto
