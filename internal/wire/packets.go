package wire

import "fmt"

// PacketID identifies a packet's schema. Values match spec.md §6.
type PacketID uint16

const (
	PacketLoginRequest      PacketID = 1000
	PacketLoginResponse     PacketID = 1001
	PacketReconnectRequest  PacketID = 1004
	PacketReconnectResponse PacketID = 1005
	PacketMoveRequest       PacketID = 2003
	PacketObjectSpawn       PacketID = 3000
	PacketObjectDespawn     PacketID = 3001
	PacketObjectUpdate      PacketID = 3002
	PacketObjectSnapshot    PacketID = 3003
	PacketHeartbeat         PacketID = 9000
	PacketError             PacketID = 9999
)

// ObjectUpdate flag bits (spec.md §6).
const (
	UpdateFlagPosition uint8 = 0x01
	UpdateFlagHP       uint8 = 0x02
	UpdateFlagLevel    uint8 = 0x04
)

// EntityKind tags the dynamic type of a world entity on the wire (spec.md §3).
type EntityKind uint8

const (
	EntityCharacter EntityKind = iota
	EntityMonster
	EntityNPC
	EntityItem
	EntityProjectile
	EntityEffect
)

// PeekPacketID reads the packet id header (first two bytes) of a frame body
// without consuming it from a fresh Reader.
func PeekPacketID(body []byte) (PacketID, error) {
	if len(body) < 2 {
		return 0, fmt.Errorf("wire: body too short for packet id")
	}
	return PacketID(body[0]) | PacketID(body[1])<<8, nil
}

func newBodyWriter(id PacketID, capacity int) *Writer {
	w := NewWriter(2 + capacity)
	w.WriteUint16(uint16(id))
	return w
}

// LoginRequest is packet 1000.
type LoginRequest struct {
	Username string
	Password string
}

func (p *LoginRequest) Encode() []byte {
	w := newBodyWriter(PacketLoginRequest, 32)
	w.WriteString(p.Username)
	w.WriteString(p.Password)
	return w.Bytes()
}

func DecodeLoginRequest(r *Reader) (*LoginRequest, error) {
	username, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("LoginRequest.Username: %w", err)
	}
	password, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("LoginRequest.Password: %w", err)
	}
	return &LoginRequest{Username: username, Password: password}, nil
}

// LoginResponse is packet 1001.
type LoginResponse struct {
	Success bool
	Message string
	Token   string
}

func (p *LoginResponse) Encode() []byte {
	w := newBodyWriter(PacketLoginResponse, 64)
	w.WriteBool(p.Success)
	w.WriteString(p.Message)
	w.WriteString(p.Token)
	return w.Bytes()
}

func DecodeLoginResponse(r *Reader) (*LoginResponse, error) {
	success, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("LoginResponse.Success: %w", err)
	}
	message, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("LoginResponse.Message: %w", err)
	}
	token, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("LoginResponse.Token: %w", err)
	}
	return &LoginResponse{Success: success, Message: message, Token: token}, nil
}

// ReconnectRequest is packet 1004.
type ReconnectRequest struct {
	Token    string
	Username string
}

func (p *ReconnectRequest) Encode() []byte {
	w := newBodyWriter(PacketReconnectRequest, 48)
	w.WriteString(p.Token)
	w.WriteString(p.Username)
	return w.Bytes()
}

func DecodeReconnectRequest(r *Reader) (*ReconnectRequest, error) {
	token, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("ReconnectRequest.Token: %w", err)
	}
	username, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("ReconnectRequest.Username: %w", err)
	}
	return &ReconnectRequest{Token: token, Username: username}, nil
}

// ReconnectResponse is packet 1005.
type ReconnectResponse struct {
	Success   bool
	Message   string
	SessionID string
}

func (p *ReconnectResponse) Encode() []byte {
	w := newBodyWriter(PacketReconnectResponse, 64)
	w.WriteBool(p.Success)
	w.WriteString(p.Message)
	w.WriteString(p.SessionID)
	return w.Bytes()
}

func DecodeReconnectResponse(r *Reader) (*ReconnectResponse, error) {
	success, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("ReconnectResponse.Success: %w", err)
	}
	message, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("ReconnectResponse.Message: %w", err)
	}
	sessionID, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("ReconnectResponse.SessionID: %w", err)
	}
	return &ReconnectResponse{Success: success, Message: message, SessionID: sessionID}, nil
}

// MoveRequest is packet 2003.
type MoveRequest struct {
	TargetX, TargetY, TargetZ float32
}

func (p *MoveRequest) Encode() []byte {
	w := newBodyWriter(PacketMoveRequest, 12)
	w.WriteFloat32(p.TargetX)
	w.WriteFloat32(p.TargetY)
	w.WriteFloat32(p.TargetZ)
	return w.Bytes()
}

func DecodeMoveRequest(r *Reader) (*MoveRequest, error) {
	x, err := r.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("MoveRequest.TargetX: %w", err)
	}
	y, err := r.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("MoveRequest.TargetY: %w", err)
	}
	z, err := r.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("MoveRequest.TargetZ: %w", err)
	}
	return &MoveRequest{TargetX: x, TargetY: y, TargetZ: z}, nil
}

// ObjectSpawn is packet 3000.
type ObjectSpawn struct {
	ID               uint32
	Type             EntityKind
	X, Y, Z          float32
	HP, MaxHP, Level int32
}

func (p *ObjectSpawn) Encode() []byte {
	w := newBodyWriter(PacketObjectSpawn, 25)
	w.WriteUint32(p.ID)
	w.WriteUint8(uint8(p.Type))
	w.WriteFloat32(p.X)
	w.WriteFloat32(p.Y)
	w.WriteFloat32(p.Z)
	w.WriteInt32(p.HP)
	w.WriteInt32(p.MaxHP)
	w.WriteInt32(p.Level)
	return w.Bytes()
}

func DecodeObjectSpawn(r *Reader) (*ObjectSpawn, error) {
	id, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.ID: %w", err)
	}
	kind, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.Type: %w", err)
	}
	x, err := r.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.X: %w", err)
	}
	y, err := r.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.Y: %w", err)
	}
	z, err := r.ReadFloat32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.Z: %w", err)
	}
	hp, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.HP: %w", err)
	}
	maxHP, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.MaxHP: %w", err)
	}
	level, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSpawn.Level: %w", err)
	}
	return &ObjectSpawn{ID: id, Type: EntityKind(kind), X: x, Y: y, Z: z, HP: hp, MaxHP: maxHP, Level: level}, nil
}

// ObjectDespawn is packet 3001.
type ObjectDespawn struct {
	ID uint32
}

func (p *ObjectDespawn) Encode() []byte {
	w := newBodyWriter(PacketObjectDespawn, 4)
	w.WriteUint32(p.ID)
	return w.Bytes()
}

func DecodeObjectDespawn(r *Reader) (*ObjectDespawn, error) {
	id, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("ObjectDespawn.ID: %w", err)
	}
	return &ObjectDespawn{ID: id}, nil
}

// ObjectUpdate is packet 3002. Fields beyond ID/Flags are present only when
// their corresponding flag bit is set.
type ObjectUpdate struct {
	ID            uint32
	Flags         uint8
	X, Y, Z       float32
	HP, Level     int32
}

func (p *ObjectUpdate) Encode() []byte {
	w := newBodyWriter(PacketObjectUpdate, 17)
	w.WriteUint32(p.ID)
	w.WriteUint8(p.Flags)
	if p.Flags&UpdateFlagPosition != 0 {
		w.WriteFloat32(p.X)
		w.WriteFloat32(p.Y)
		w.WriteFloat32(p.Z)
	}
	if p.Flags&UpdateFlagHP != 0 {
		w.WriteInt32(p.HP)
	}
	if p.Flags&UpdateFlagLevel != 0 {
		w.WriteInt32(p.Level)
	}
	return w.Bytes()
}

func DecodeObjectUpdate(r *Reader) (*ObjectUpdate, error) {
	id, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("ObjectUpdate.ID: %w", err)
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("ObjectUpdate.Flags: %w", err)
	}
	u := &ObjectUpdate{ID: id, Flags: flags}
	if flags&UpdateFlagPosition != 0 {
		if u.X, err = r.ReadFloat32(); err != nil {
			return nil, fmt.Errorf("ObjectUpdate.X: %w", err)
		}
		if u.Y, err = r.ReadFloat32(); err != nil {
			return nil, fmt.Errorf("ObjectUpdate.Y: %w", err)
		}
		if u.Z, err = r.ReadFloat32(); err != nil {
			return nil, fmt.Errorf("ObjectUpdate.Z: %w", err)
		}
	}
	if flags&UpdateFlagHP != 0 {
		if u.HP, err = r.ReadInt32(); err != nil {
			return nil, fmt.Errorf("ObjectUpdate.HP: %w", err)
		}
	}
	if flags&UpdateFlagLevel != 0 {
		if u.Level, err = r.ReadInt32(); err != nil {
			return nil, fmt.Errorf("ObjectUpdate.Level: %w", err)
		}
	}
	return u, nil
}

// ObjectSnapshot is packet 3003: a full listing of currently-visible entities,
// sent once on spawn/reconnect.
type ObjectSnapshot struct {
	Entries []ObjectSpawn
}

func (p *ObjectSnapshot) Encode() []byte {
	w := newBodyWriter(PacketObjectSnapshot, 4+len(p.Entries)*25)
	w.WriteInt32(int32(len(p.Entries)))
	for _, e := range p.Entries {
		w.WriteUint32(e.ID)
		w.WriteUint8(uint8(e.Type))
		w.WriteFloat32(e.X)
		w.WriteFloat32(e.Y)
		w.WriteFloat32(e.Z)
		w.WriteInt32(e.HP)
		w.WriteInt32(e.MaxHP)
		w.WriteInt32(e.Level)
	}
	return w.Bytes()
}

func DecodeObjectSnapshot(r *Reader) (*ObjectSnapshot, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("ObjectSnapshot.Count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("ObjectSnapshot.Count negative: %d", count)
	}
	entries := make([]ObjectSpawn, 0, count)
	for i := int32(0); i < count; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].ID: %w", i, err)
		}
		kind, err := r.ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].Type: %w", i, err)
		}
		x, err := r.ReadFloat32()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].X: %w", i, err)
		}
		y, err := r.ReadFloat32()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].Y: %w", i, err)
		}
		z, err := r.ReadFloat32()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].Z: %w", i, err)
		}
		hp, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].HP: %w", i, err)
		}
		maxHP, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].MaxHP: %w", i, err)
		}
		level, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("ObjectSnapshot[%d].Level: %w", i, err)
		}
		entries = append(entries, ObjectSpawn{ID: id, Type: EntityKind(kind), X: x, Y: y, Z: z, HP: hp, MaxHP: maxHP, Level: level})
	}
	return &ObjectSnapshot{Entries: entries}, nil
}

// Heartbeat is packet 9000: an empty keepalive.
type Heartbeat struct{}

func (p *Heartbeat) Encode() []byte {
	return newBodyWriter(PacketHeartbeat, 0).Bytes()
}

// ErrorPacket is packet 9999: a free-form error message sent to the client
// before a protocol-level disconnect is not required by spec, but handlers
// may use it to explain an application-level failure.
type ErrorPacket struct {
	Message string
}

func (p *ErrorPacket) Encode() []byte {
	w := newBodyWriter(PacketError, len(p.Message)+2)
	w.WriteString(p.Message)
	return w.Bytes()
}

func DecodeErrorPacket(r *Reader) (*ErrorPacket, error) {
	msg, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("ErrorPacket.Message: %w", err)
	}
	return &ErrorPacket{Message: msg}, nil
}
