package sched

// WeightTable is the frozen nice -> weight lookup, approximating
// 1024 * 1.25^(-nice). Reproduced verbatim from the Linux/xv6-CFS table
// (spec.md §4.2); implementers must use these exact constants so that
// priority ratios match across implementations.
var WeightTable = [40]uint64{
	/* -20 */ 88761, 71755, 56483, 46273, 36291,
	/* -15 */ 29154, 23254, 18705, 14949, 11916,
	/* -10 */ 9548, 7620, 6100, 4904, 3906,
	/* -5  */ 3121, 2501, 1991, 1586, 1277,
	/* 0   */ 1024, 820, 655, 526, 423,
	/* 5   */ 335, 272, 215, 172, 137,
	/* 10  */ 110, 87, 70, 56, 45,
	/* 15  */ 36, 29, 23, 18, 15,
}

// WeightForNice returns weight_table[nice+20], clamping nice to [-20, 19]
// first. nice(delta) (spec.md §4.8) clamps before this is ever consulted,
// so the clamp here is a defensive mirror of that invariant, not a second
// policy decision.
func WeightForNice(nice int32) uint64 {
	if nice < -20 {
		nice = -20
	} else if nice > 19 {
		nice = 19
	}
	return WeightTable[nice+20]
}
