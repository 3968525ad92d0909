package gcode

// Built-in dialect profiles for the common hobby-CNC controllers. Each is
// a plain value; callers may copy and adjust fields before emitting.

// Grbl returns the profile for GRBL-based controllers.
func Grbl() Dialect {
	return Dialect{
		Name:      "grbl",
		Units:     "mm",
		Precision: 4,
		RapidWord: "G0",
		FeedWord:  "G1",
		Preamble: "(units=${units} precision=${precision})\n" +
			"(bounds X${minx}..${maxx} Y${miny}..${maxy})\n" +
			"(generated by ${generator} at ${timestamp})\n" +
			"G21\nG90\nG94",
		Postamble:    "M5\nG0 Z${safez}\nM2",
		ToolChange:   "M5\nM0 (change tool to ${tool}, ${diameter} mm)",
		SpindleOn:    "M3 S${rpm}",
		SpindleOff:   "M5",
		CommentOpen:  "(",
		CommentClose: ")",
	}
}

// LinuxCNC returns the profile for LinuxCNC machines with an automatic
// tool changer.
func LinuxCNC() Dialect {
	return Dialect{
		Name:      "linuxcnc",
		Units:     "mm",
		Precision: 5,
		RapidWord: "G0",
		FeedWord:  "G1",
		Preamble: "(units=${units} precision=${precision})\n" +
			"(bounds X${minx}..${maxx} Y${miny}..${maxy})\n" +
			"(generated by ${generator} at ${timestamp})\n" +
			"G21 G90 G94 G17\nG64 P0.01",
		Postamble:    "M5\nG0 Z${safez}\nM30",
		ToolChange:   "T${toolnum} M6 (load ${tool})",
		SpindleOn:    "M3 S${rpm}",
		SpindleOff:   "M5",
		CommentOpen:  "(",
		CommentClose: ")",
	}
}

// Marlin returns the profile for Marlin-firmware engravers, which use
// semicolon comments and fan-style spindle control.
func Marlin() Dialect {
	return Dialect{
		Name:      "marlin",
		Units:     "mm",
		Precision: 3,
		RapidWord: "G0",
		FeedWord:  "G1",
		Preamble: "; units=${units} precision=${precision}\n" +
			"; bounds X${minx}..${maxx} Y${miny}..${maxy}\n" +
			"; generated by ${generator} at ${timestamp}\n" +
			"G21\nG90",
		Postamble:    "M107\nG0 Z${safez}\nM84",
		ToolChange:   "M0 change tool to ${tool}",
		SpindleOn:    "M106 S${rpm255}",
		SpindleOff:   "M107",
		CommentOpen:  ";",
		CommentClose: "",
	}
}

// Builtin returns the named built-in profile.
func Builtin(name string) (Dialect, bool) {
	switch name {
	case "grbl":
		return Grbl(), true
	case "linuxcnc":
		return LinuxCNC(), true
	case "marlin":
		return Marlin(), true
	default:
		return Dialect{}, false
	}
}
