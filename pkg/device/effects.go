package device

import "github.com/justyntemme/umidi20go/pkg/midi"

// keyCompletionInterval maps each key-completion effect bit to the number of
// semitones a note event is transposed by before being queued, grounded on
// the EFFECT_KEYCOMPL_1/2/3 bits of umidi20_config_dev's effects field.
var keyCompletionInterval = map[Effect]uint8{
	EffectKeyCompletion1: 12, // octave
	EffectKeyCompletion2: 7,  // perfect fifth
	EffectKeyCompletion3: 4,  // major third
}

// ApplyEffects runs ev through this RX device's configured record-time
// transforms (loopback, key completion) before it is inserted into the
// input queue. loopback, if this device's Effects include EffectLoopback, is handed
// ev to route directly to the matching TX device.
func (d *Device) ApplyEffects(ev *midi.Event, loopback func(*midi.Event)) {
	d.mu.Lock()
	fx := d.Effects
	d.mu.Unlock()

	if fx&EffectLoopback != 0 && loopback != nil {
		loopback(ev)
	}

	if !ev.IsVoice() || (ev.Key() == 0 && !ev.IsKeyStart() && !ev.IsKeyEnd()) {
		return
	}

	for bit, interval := range keyCompletionInterval {
		if fx&bit == 0 {
			continue
		}
		transposed := ev.Key() + interval
		if transposed > 127 {
			continue
		}
		ev.Cmd[2] = transposed
	}
}
